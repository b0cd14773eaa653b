package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/models"
)

func line(x0, y0, x1, y1 float64) models.Stroke {
	return models.Stroke{Points: []models.Point{{X: x0, Y: y0}, {X: x1, Y: y1}}}
}

func sampleBoard() Board {
	note := models.NewNote(300, 50)
	note.ID = "n1"
	note.Text = "Standup"
	return Board{
		Name: "Retro",
		Strokes: []models.Stroke{
			line(0, 0, 100, 100),
			{Points: []models.Point{{X: 5000, Y: 5000}}, Erase: true},
			{Points: []models.Point{{X: 40, Y: 60}}},
		},
		Notes: []models.Note{note},
		Shapes: []models.Shape{
			{ID: "s1", Type: models.ShapeRect, Frame: models.Frame{X: 10, Y: 200, W: 80, H: 40}, Stroke: "#000", Fill: "#F00"},
			{ID: "s2", Type: models.ShapeEllipse, Frame: models.Frame{X: 120, Y: 200, W: 60, H: 60}, Stroke: "#00F"},
			{ID: "s3", Type: models.ShapeTriangle, Frame: models.Frame{X: 200, Y: 200, W: 60, H: 60}, Stroke: "#0F0"},
			{ID: "s4", Type: models.ShapeArrow, Frame: models.Frame{X: 300, Y: 300, W: -50, H: 0}, Stroke: "#333333", StrokeWidth: 3},
		},
		Texts: []models.TextBox{
			{ID: "t1", Frame: models.Frame{X: 0, Y: 320, W: 200, H: 40}, Text: "Agenda", Color: "#222222", FontSize: 16},
		},
	}
}

func TestPDF_RendersBoard(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{Margin: 10, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, PDF(&buf, sampleBoard(), opts))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("(Standup)")), "note text is written")
	assert.True(t, bytes.Contains(out, []byte("(Agenda)")), "text box is written")
	assert.True(t, bytes.Contains(out, []byte("/Title")))
}

func TestPDF_EmptyBoard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, Board{Name: "Empty"}, DefaultOptions()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestContentBounds_SkipsEraser(t *testing.T) {
	b := contentBounds(Board{Strokes: []models.Stroke{
		line(10, 20, 30, 5),
		{Points: []models.Point{{X: -1000, Y: -1000}, {X: 1000, Y: 1000}}, Erase: true},
	}})
	assert.False(t, b.empty)
	assert.Equal(t, bounds{minX: 10, minY: 5, maxX: 30, maxY: 20}, b)

	assert.True(t, contentBounds(Board{Strokes: []models.Stroke{{Erase: true, Points: []models.Point{{}}}}}).empty)
}

func TestContentBounds_Objects(t *testing.T) {
	b := contentBounds(Board{
		Notes:  []models.Note{{Frame: models.Frame{X: 0, Y: 0, W: 10, H: 10}}},
		Shapes: []models.Shape{{Frame: models.Frame{X: 50, Y: 50, W: -20, H: 5}}},
		Texts:  []models.TextBox{{Frame: models.Frame{X: -5, Y: 100, W: 10, H: 10}}},
	})
	assert.Equal(t, bounds{minX: -5, minY: 0, maxX: 50, maxY: 110}, b)
}

func TestNewFit_MapsContentIntoMargins(t *testing.T) {
	f := newFit(bounds{minX: 100, minY: 100, maxX: 300, maxY: 200}, 297, 210, 10)

	// Ширина ограничивает масштаб: 277/200
	assert.InDelta(t, 277.0/200, f.scale, 1e-9)
	assert.InDelta(t, 10, f.x(100), 1e-9)
	assert.InDelta(t, 287, f.x(300), 1e-9)
	assert.InDelta(t, 10, f.y(100), 1e-9)
	assert.Less(t, f.y(200), 200.0)

	empty := newFit(bounds{empty: true}, 297, 210, 10)
	assert.Equal(t, fit{scale: 1, dx: 10, dy: 10}, empty)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b int
	}{
		{"#FF8000", 255, 128, 0},
		{"#0f0", 0, 255, 0},
		{"#123456", 0x12, 0x34, 0x56},
		{"", 0, 0, 0},
		{"#GGGGGG", 0, 0, 0},
		{"#12345", 0, 0, 0},
	}
	for _, tt := range tests {
		r, g, b := parseColor(tt.in)
		assert.Equal(t, []int{tt.r, tt.g, tt.b}, []int{r, g, b}, tt.in)
	}
}
