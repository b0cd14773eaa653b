package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/iudanet/boardsync/internal/client/session"
)

const closeTimeout = 5 * time.Second

// summaryPrinter печатает сводку доски только при ее изменении
type summaryPrinter struct {
	c    *Cli
	s    *session.Session
	last string
	mu   sync.Mutex
}

func (p *summaryPrinter) print() {
	line := summary(p.s)
	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	p.c.io.Println(line)
}

func summary(s *session.Session) string {
	name := s.Name()
	if name == "" {
		name = s.BoardID()
	}
	return fmt.Sprintf("[%s] strokes=%d notes=%d shapes=%d texts=%d participants=%d",
		name,
		len(s.Strokes.Visible()),
		len(s.Notes.List()),
		len(s.Shapes.List()),
		len(s.Texts.List()),
		len(s.Presence.Roster()),
	)
}

func (c *Cli) runJoin(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("join", pflag.ContinueOnError)
	fs.SetOutput(c.io)
	script := fs.String("script", "", "JSON lines file with actions to replay after joining")
	exit := fs.Bool("exit", false, "Leave the board once the script is done")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireBoard(); err != nil {
		return err
	}

	token, err := c.getToken()
	if err != nil {
		return err
	}

	s, cleanup, err := c.connect(ctx, c.cfg, token, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open board: %w", err)
	}
	defer cleanup()
	defer c.closeSession(s)

	printer := &summaryPrinter{c: c, s: s}
	s.OnChange(printer.print)
	s.OnError(func(err error) {
		c.io.Printf("Error: %v\n", err)
	})
	c.io.Printf("Joined board %s\n", c.cfg.BoardID)
	printer.print()

	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		err = runScript(ctx, s, f)
		_ = f.Close()
		if err != nil && !errors.Is(s.Err(), session.ErrBoardDeleted) {
			return err
		}
	}

	if !*exit {
		select {
		case <-ctx.Done():
		case <-s.Done():
		}
	}

	if errors.Is(s.Err(), session.ErrBoardDeleted) {
		c.io.Println("Board was deleted.")
	}
	return nil
}

// closeSession закрывает сессию даже если ctx команды уже отменен.
// Очереди записи объектов дожидаются до закрытия кэша.
func (c *Cli) closeSession(s *session.Session) {
	s.Notes.Wait()
	s.Shapes.Wait()
	s.Texts.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		c.logger.Warn("Failed to close board session", "error", err)
	}
}
