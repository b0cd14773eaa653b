package models

import (
	"math"
)

// Point представляет точку в мировых (world) координатах доски.
type Point struct {
	X float64 `json:"x"` // X горизонтальная координата
	Y float64 `json:"y"` // Y вертикальная координата
}

// IsFinite reports whether both coordinates are real numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Stroke представляет штрих свободного рисования.
// Штрих неизменяем после создания: он только добавляется в общую историю
// или логически удаляется через undo.
type Stroke struct {
	Points []Point `json:"points"` // Points упорядоченные точки штриха в world space
	Erase  bool    `json:"erase"`  // Erase штрих ластика
}

// Validate проверяет, что штрих содержит хотя бы одну точку и все координаты конечны.
func (s Stroke) Validate() error {
	if len(s.Points) == 0 {
		return &ValidationError{Field: "points", Reason: "stroke must contain at least one point"}
	}
	for _, p := range s.Points {
		if !p.IsFinite() {
			return &ValidationError{Field: "points", Reason: "stroke point is not a finite number"}
		}
	}
	return nil
}

// Clone создает глубокую копию штриха
func (s Stroke) Clone() Stroke {
	points := make([]Point, len(s.Points))
	copy(points, s.Points)
	return Stroke{Points: points, Erase: s.Erase}
}

// Bounds returns the bounding box of the stroke points.
func (s Stroke) Bounds() (minX, minY, maxX, maxY float64) {
	if len(s.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = s.Points[0].X, s.Points[0].Y
	maxX, maxY = minX, minY
	for _, p := range s.Points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// Snapshot is the durable representation of a board's strokes: the contents
// of the undo stack at the time of the write. Redo history is never persisted.
//
// Epoch, Serial and Writer locate the snapshot in the strokes topic: it
// reflects every message of that relay epoch up to Serial plus the messages
// Writer published itself.
type Snapshot struct {
	Epoch   string   `json:"epoch,omitempty"`
	Writer  string   `json:"writer,omitempty"`
	Strokes []Stroke `json:"strokes"`
	Serial  uint64   `json:"serial,omitempty"`
}

// Covers reports whether the strokes topic message is already reflected in
// the snapshot. Messages of another epoch never are.
func (s *Snapshot) Covers(epoch string, serial uint64, clientID string) bool {
	if s.Epoch == "" || s.Epoch != epoch {
		return false
	}
	return serial <= s.Serial || clientID == s.Writer
}

// Role определяет уровень доступа участника к доске
type Role string

// Role константы
const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// CanEdit reports whether the role may mutate board content.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleOwner
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleOwner:
		return true
	}
	return false
}

// Tool is the drawing tool selected by the local user. It is owned by the
// board session and passed explicitly to whatever needs it.
type Tool string

// Tool константы
const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
	ToolNote   Tool = "note"
	ToolShape  Tool = "shape"
	ToolText   Tool = "text"
	ToolPan    Tool = "pan"
)

// Valid reports whether t is one of the known tools.
func (t Tool) Valid() bool {
	switch t {
	case ToolPen, ToolEraser, ToolNote, ToolShape, ToolText, ToolPan:
		return true
	}
	return false
}

// Draws reports whether the tool produces freehand strokes.
func (t Tool) Draws() bool {
	return t == ToolPen || t == ToolEraser
}
