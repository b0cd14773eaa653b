package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iudanet/boardsync/internal/client/session"
	"github.com/iudanet/boardsync/internal/models"
)

// ErrUnknownOp операция сценария не поддерживается
var ErrUnknownOp = errors.New("unknown script op")

// scriptStep одна строка сценария в формате JSON lines
type scriptStep struct {
	Op       string          `json:"op"`
	Tool     models.Tool     `json:"tool,omitempty"`
	Points   []models.Point  `json:"points,omitempty"`
	Point    *models.Point   `json:"point,omitempty"`
	Delta    float64         `json:"delta,omitempty"`
	Name     string          `json:"name,omitempty"`
	Object   json.RawMessage `json:"object,omitempty"`
	Duration string          `json:"duration,omitempty"`
}

// runScript replays a JSON lines script against the session. Blank lines and
// lines starting with # are skipped. The first failing step stops the replay.
func runScript(ctx context.Context, s *session.Session, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var step scriptStep
		if err := json.Unmarshal([]byte(text), &step); err != nil {
			return fmt.Errorf("script line %d: invalid JSON: %w", line, err)
		}
		if err := applyStep(ctx, s, step); err != nil {
			return fmt.Errorf("script line %d (%s): %w", line, step.Op, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return nil
}

func applyStep(ctx context.Context, s *session.Session, step scriptStep) error {
	switch step.Op {
	case "tool":
		return s.SetTool(step.Tool)
	case "draw":
		return s.Draw(ctx, step.Points)
	case "undo":
		return s.Strokes.Undo(ctx)
	case "redo":
		return s.Strokes.Redo(ctx)
	case "clear":
		return s.Strokes.Clear(ctx)
	case "note":
		var n models.Note
		if err := decodeObject(step.Object, &n); err != nil {
			return err
		}
		_, err := s.Notes.Create(ctx, n)
		return err
	case "shape":
		var sh models.Shape
		if err := decodeObject(step.Object, &sh); err != nil {
			return err
		}
		_, err := s.Shapes.Create(ctx, sh)
		return err
	case "text":
		var tb models.TextBox
		if err := decodeObject(step.Object, &tb); err != nil {
			return err
		}
		_, err := s.Texts.Create(ctx, tb)
		return err
	case "cursor":
		if step.Point == nil {
			return fmt.Errorf("point is required")
		}
		return s.PointerMove(ctx, *step.Point)
	case "leave":
		return s.PointerLeave(ctx)
	case "pan":
		if step.Point == nil {
			return fmt.Errorf("point is required")
		}
		s.Pan(*step.Point)
		return nil
	case "zoom":
		if step.Point == nil {
			return fmt.Errorf("point is required")
		}
		s.Zoom(*step.Point, step.Delta)
		return nil
	case "rename":
		return s.Rename(ctx, step.Name)
	case "delete":
		return s.Delete(ctx)
	case "wait":
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	default:
		return ErrUnknownOp
	}
}

func decodeObject(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("object is required")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid object: %w", err)
	}
	return nil
}
