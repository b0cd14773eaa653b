package models

import (
	"math"

	"github.com/iudanet/boardsync/internal/validation"
)

// ObjectKind определяет тип независимо адресуемого объекта доски
type ObjectKind string

// ObjectKind константы
const (
	KindNote    ObjectKind = "note"
	KindShape   ObjectKind = "shape"
	KindTextBox ObjectKind = "text"
)

// Valid reports whether k is one of the synchronized object kinds.
func (k ObjectKind) Valid() bool {
	switch k {
	case KindNote, KindShape, KindTextBox:
		return true
	}
	return false
}

// Frame is the position and size of an object in world space.
type Frame struct {
	X float64 `json:"x"` // X левый край
	Y float64 `json:"y"` // Y верхний край
	W float64 `json:"w"` // W ширина
	H float64 `json:"h"` // H высота
}

func (f Frame) validate(allowFlat bool) error {
	for _, v := range []float64{f.X, f.Y, f.W, f.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "geometry", Reason: "coordinates must be finite numbers"}
		}
	}
	if allowFlat {
		// Линии и стрелки задаются вектором (w, h), нулевой вектор недопустим
		if f.W == 0 && f.H == 0 {
			return &ValidationError{Field: "geometry", Reason: "line must have a non-zero extent"}
		}
		return nil
	}
	if f.W <= 0 || f.H <= 0 {
		return &ValidationError{Field: "geometry", Reason: "width and height are required and must be positive"}
	}
	return nil
}

// FramePatch carries the geometry fields of a partial update. Nil fields are
// left untouched.
type FramePatch struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	W *float64 `json:"w,omitempty"`
	H *float64 `json:"h,omitempty"`
}

func (p FramePatch) apply(f Frame) Frame {
	if p.X != nil {
		f.X = *p.X
	}
	if p.Y != nil {
		f.Y = *p.Y
	}
	if p.W != nil {
		f.W = *p.W
	}
	if p.H != nil {
		f.H = *p.H
	}
	return f
}

func (p FramePatch) isEmpty() bool {
	return p.X == nil && p.Y == nil && p.W == nil && p.H == nil
}

// MoveTo returns a FramePatch that moves an object to (x, y).
func MoveTo(x, y float64) FramePatch {
	return FramePatch{X: &x, Y: &y}
}

// ResizeTo returns a FramePatch that resizes an object to w×h.
func ResizeTo(w, h float64) FramePatch {
	return FramePatch{W: &w, H: &h}
}

func validateColor(field, color string) error {
	if err := validation.ValidateColor(color); err != nil {
		return &ValidationError{Field: field, Reason: err.Error()}
	}
	return nil
}

// Стандартные параметры стикера
const (
	DefaultNoteColor  = "#FFEB3B"
	DefaultNoteWidth  = 180
	DefaultNoteHeight = 160
)

// Note представляет стикер (sticky note) на доске.
type Note struct {
	ID      string `json:"id"`      // ID стабильный уникальный идентификатор
	BoardID string `json:"boardId"` // BoardID доска, которой принадлежит объект
	Frame
	Color string `json:"color"` // Color цвет фона в формате #RRGGBB
	Text  string `json:"text"`  // Text содержимое стикера
}

// NewNote creates a note with the default size and color at (x, y).
func NewNote(x, y float64) Note {
	return Note{
		Frame: Frame{X: x, Y: y, W: DefaultNoteWidth, H: DefaultNoteHeight},
		Color: DefaultNoteColor,
	}
}

// NotePatch is a partial update of a Note.
type NotePatch struct {
	FramePatch
	Color *string `json:"color,omitempty"`
	Text  *string `json:"text,omitempty"`
}

func (n Note) ObjectID() string { return n.ID }

func (n Note) WithID(id string) Note {
	n.ID = id
	return n
}

func (n Note) WithBoard(boardID string) Note {
	n.BoardID = boardID
	return n
}

// Apply returns a copy of n with every non-nil patch field merged in.
func (n Note) Apply(p NotePatch) Note {
	n.Frame = p.FramePatch.apply(n.Frame)
	if p.Color != nil {
		n.Color = *p.Color
	}
	if p.Text != nil {
		n.Text = *p.Text
	}
	return n
}

func (n Note) Validate() error {
	if err := n.Frame.validate(false); err != nil {
		return err
	}
	return validateColor("color", n.Color)
}

func (p NotePatch) IsEmpty() bool {
	return p.FramePatch.isEmpty() && p.Color == nil && p.Text == nil
}

// ShapeType определяет геометрию фигуры
type ShapeType string

// ShapeType константы
const (
	ShapeRect     ShapeType = "rect"
	ShapeEllipse  ShapeType = "ellipse"
	ShapeTriangle ShapeType = "triangle"
	ShapeLine     ShapeType = "line"
	ShapeArrow    ShapeType = "arrow"
)

// Flat reports whether the shape is drawn as a vector rather than an area.
func (t ShapeType) Flat() bool {
	return t == ShapeLine || t == ShapeArrow
}

func (t ShapeType) valid() bool {
	switch t {
	case ShapeRect, ShapeEllipse, ShapeTriangle, ShapeLine, ShapeArrow:
		return true
	}
	return false
}

// Shape представляет геометрическую фигуру на доске.
type Shape struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
	Frame
	Type        ShapeType `json:"type"`        // Type вид фигуры
	Stroke      string    `json:"stroke"`      // Stroke цвет контура
	Fill        string    `json:"fill"`        // Fill цвет заливки, пустой - без заливки
	StrokeWidth float64   `json:"strokeWidth"` // StrokeWidth толщина контура
}

// ShapePatch is a partial update of a Shape.
type ShapePatch struct {
	FramePatch
	Type        *ShapeType `json:"type,omitempty"`
	Stroke      *string    `json:"stroke,omitempty"`
	Fill        *string    `json:"fill,omitempty"`
	StrokeWidth *float64   `json:"strokeWidth,omitempty"`
}

func (s Shape) ObjectID() string { return s.ID }

func (s Shape) WithID(id string) Shape {
	s.ID = id
	return s
}

func (s Shape) WithBoard(boardID string) Shape {
	s.BoardID = boardID
	return s
}

func (s Shape) Apply(p ShapePatch) Shape {
	s.Frame = p.FramePatch.apply(s.Frame)
	if p.Type != nil {
		s.Type = *p.Type
	}
	if p.Stroke != nil {
		s.Stroke = *p.Stroke
	}
	if p.Fill != nil {
		s.Fill = *p.Fill
	}
	if p.StrokeWidth != nil {
		s.StrokeWidth = *p.StrokeWidth
	}
	return s
}

func (s Shape) Validate() error {
	if !s.Type.valid() {
		return &ValidationError{Field: "type", Reason: "unknown shape type " + string(s.Type)}
	}
	if err := s.Frame.validate(s.Type.Flat()); err != nil {
		return err
	}
	if s.StrokeWidth < 0 || math.IsNaN(s.StrokeWidth) {
		return &ValidationError{Field: "strokeWidth", Reason: "must not be negative"}
	}
	if err := validateColor("stroke", s.Stroke); err != nil {
		return err
	}
	if s.Fill != "" {
		return validateColor("fill", s.Fill)
	}
	return nil
}

func (p ShapePatch) IsEmpty() bool {
	return p.FramePatch.isEmpty() && p.Type == nil && p.Stroke == nil && p.Fill == nil && p.StrokeWidth == nil
}

// DefaultFontSize размер шрифта текстового блока по умолчанию
const DefaultFontSize = 16

// TextBox представляет текстовый блок на доске.
type TextBox struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
	Frame
	Text     string  `json:"text"`
	Color    string  `json:"color"`
	FontSize float64 `json:"fontSize"`
}

// TextBoxPatch is a partial update of a TextBox.
type TextBoxPatch struct {
	FramePatch
	Text     *string  `json:"text,omitempty"`
	Color    *string  `json:"color,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

func (t TextBox) ObjectID() string { return t.ID }

func (t TextBox) WithID(id string) TextBox {
	t.ID = id
	return t
}

func (t TextBox) WithBoard(boardID string) TextBox {
	t.BoardID = boardID
	return t
}

func (t TextBox) Apply(p TextBoxPatch) TextBox {
	t.Frame = p.FramePatch.apply(t.Frame)
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.FontSize != nil {
		t.FontSize = *p.FontSize
	}
	return t
}

func (t TextBox) Validate() error {
	if err := t.Frame.validate(false); err != nil {
		return err
	}
	if t.FontSize <= 0 || math.IsNaN(t.FontSize) {
		return &ValidationError{Field: "fontSize", Reason: "must be positive"}
	}
	return validateColor("color", t.Color)
}

func (p TextBoxPatch) IsEmpty() bool {
	return p.FramePatch.isEmpty() && p.Text == nil && p.Color == nil && p.FontSize == nil
}
