// Package export renders a board to a single-page PDF document.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/iudanet/boardsync/internal/models"
)

// Board is the content rendered by PDF.
type Board struct {
	Name    string
	Strokes []models.Stroke
	Notes   []models.Note
	Shapes  []models.Shape
	Texts   []models.TextBox
}

// Options configures the rendering.
type Options struct {
	// Margin вокруг содержимого в миллиметрах
	Margin float64
	// CreatedAt дата создания документа; нулевое значение - текущее время
	CreatedAt time.Time
	// Compress сжатие потоков страницы
	Compress bool
}

// DefaultOptions returns the options used by the export command.
func DefaultOptions() Options {
	return Options{Margin: 10, Compress: true}
}

const (
	penWidth  = 2.0 // penWidth толщина штриха в мировых единицах
	arrowHead = 12.0
)

// bounds is a world space rectangle.
type bounds struct {
	minX, minY, maxX, maxY float64
	empty                  bool
}

func (b *bounds) add(x, y float64) {
	if b.empty {
		b.minX, b.minY, b.maxX, b.maxY = x, y, x, y
		b.empty = false
		return
	}
	b.minX = math.Min(b.minX, x)
	b.minY = math.Min(b.minY, y)
	b.maxX = math.Max(b.maxX, x)
	b.maxY = math.Max(b.maxY, y)
}

func (b *bounds) addFrame(f models.Frame) {
	b.add(f.X, f.Y)
	b.add(f.X+f.W, f.Y+f.H)
}

// contentBounds returns the area covered by everything that is rendered.
// Eraser strokes are not rendered and do not count.
func contentBounds(board Board) bounds {
	b := bounds{empty: true}
	for _, s := range board.Strokes {
		if s.Erase || len(s.Points) == 0 {
			continue
		}
		minX, minY, maxX, maxY := s.Bounds()
		b.add(minX, minY)
		b.add(maxX, maxY)
	}
	for _, n := range board.Notes {
		b.addFrame(n.Frame)
	}
	for _, s := range board.Shapes {
		b.addFrame(s.Frame)
	}
	for _, t := range board.Texts {
		b.addFrame(t.Frame)
	}
	return b
}

// fit maps world coordinates onto the printable area of a page.
type fit struct {
	scale, dx, dy float64
}

func newFit(b bounds, pageW, pageH, margin float64) fit {
	if b.empty {
		return fit{scale: 1, dx: margin, dy: margin}
	}
	w := math.Max(b.maxX-b.minX, 1)
	h := math.Max(b.maxY-b.minY, 1)
	scale := math.Min((pageW-2*margin)/w, (pageH-2*margin)/h)
	return fit{
		scale: scale,
		dx:    margin - b.minX*scale,
		dy:    margin - b.minY*scale,
	}
}

func (f fit) x(v float64) float64 { return v*f.scale + f.dx }
func (f fit) y(v float64) float64 { return v*f.scale + f.dy }
func (f fit) l(v float64) float64 { return v * f.scale }

// parseColor converts #RGB or #RRGGBB to components; anything else is black.
func parseColor(s string) (r, g, b int) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

// PDF renders board on a landscape A4 page scaled to fit and writes it to w.
func PDF(w io.Writer, board Board, opts Options) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(opts.Compress)
	created := opts.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	pdf.SetCreationDate(created)
	pdf.SetTitle(board.Name, true)
	pdf.SetCreator("boardsync", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	f := newFit(contentBounds(board), pageW, pageH, opts.Margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	drawStrokes(pdf, f, board.Strokes)
	for _, s := range board.Shapes {
		drawShape(pdf, f, s)
	}
	for _, n := range board.Notes {
		drawNote(pdf, f, tr, n)
	}
	for _, t := range board.Texts {
		drawText(pdf, f, tr, t)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

func drawStrokes(pdf *gofpdf.Fpdf, f fit, strokes []models.Stroke) {
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetFillColor(0, 0, 0)
	pdf.SetLineWidth(f.l(penWidth))
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")
	for _, s := range strokes {
		if s.Erase {
			continue
		}
		if len(s.Points) == 1 {
			p := s.Points[0]
			pdf.Circle(f.x(p.X), f.y(p.Y), f.l(penWidth/2), "F")
			continue
		}
		for i := 1; i < len(s.Points); i++ {
			a, b := s.Points[i-1], s.Points[i]
			pdf.Line(f.x(a.X), f.y(a.Y), f.x(b.X), f.y(b.Y))
		}
	}
}

func drawShape(pdf *gofpdf.Fpdf, f fit, s models.Shape) {
	pdf.SetDrawColor(parseColor(s.Stroke))
	pdf.SetLineWidth(f.l(math.Max(s.StrokeWidth, 0.5)))
	style := "D"
	if s.Fill != "" {
		pdf.SetFillColor(parseColor(s.Fill))
		style = "FD"
	}

	x, y, w, h := f.x(s.X), f.y(s.Y), f.l(s.W), f.l(s.H)
	switch s.Type {
	case models.ShapeRect:
		pdf.Rect(x, y, w, h, style)
	case models.ShapeEllipse:
		pdf.Ellipse(x+w/2, y+h/2, w/2, h/2, 0, style)
	case models.ShapeTriangle:
		pdf.Polygon([]gofpdf.PointType{
			{X: x + w/2, Y: y},
			{X: x + w, Y: y + h},
			{X: x, Y: y + h},
		}, style)
	case models.ShapeLine:
		pdf.Line(x, y, x+w, y+h)
	case models.ShapeArrow:
		pdf.Line(x, y, x+w, y+h)
		drawArrowHead(pdf, f, x+w, y+h, math.Atan2(h, w))
	}
}

func drawArrowHead(pdf *gofpdf.Fpdf, f fit, tipX, tipY, angle float64) {
	size := f.l(arrowHead)
	left := angle + math.Pi*5/6
	right := angle - math.Pi*5/6
	r, g, b := pdf.GetDrawColor()
	pdf.SetFillColor(r, g, b)
	pdf.Polygon([]gofpdf.PointType{
		{X: tipX, Y: tipY},
		{X: tipX + size*math.Cos(left), Y: tipY + size*math.Sin(left)},
		{X: tipX + size*math.Cos(right), Y: tipY + size*math.Sin(right)},
	}, "F")
}

func drawNote(pdf *gofpdf.Fpdf, f fit, tr func(string) string, n models.Note) {
	x, y, w, h := f.x(n.X), f.y(n.Y), f.l(n.W), f.l(n.H)
	pdf.SetFillColor(parseColor(n.Color))
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetLineWidth(0.2)
	pdf.Rect(x, y, w, h, "FD")
	if n.Text == "" {
		return
	}
	pdf.SetTextColor(0, 0, 0)
	writeBlock(pdf, x, y, w, h, f.l(models.DefaultFontSize), tr(n.Text))
}

func drawText(pdf *gofpdf.Fpdf, f fit, tr func(string) string, t models.TextBox) {
	if t.Text == "" {
		return
	}
	pdf.SetTextColor(parseColor(t.Color))
	writeBlock(pdf, f.x(t.X), f.y(t.Y), f.l(t.W), f.l(t.H), f.l(t.FontSize), tr(t.Text))
}

// writeBlock writes wrapped text inside a box. size is in mm and converted
// to points for the font.
func writeBlock(pdf *gofpdf.Fpdf, x, y, w, h, size float64, text string) {
	pt := math.Max(size*72/25.4, 4)
	pdf.SetFont("Helvetica", "", pt)
	pad := math.Min(w, h) * 0.05
	pdf.SetXY(x+pad, y+pad)
	pdf.MultiCell(math.Max(w-2*pad, 1), size*1.2, text, "", "L", false)
}
