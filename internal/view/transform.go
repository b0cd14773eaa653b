// Package view maps between screen space and world space under the local
// user's pan and zoom. Every function here is pure.
package view

import (
	"math"

	"github.com/iudanet/boardsync/internal/models"
)

const (
	// MinScale минимальный масштаб
	MinScale = 0.3
	// MaxScale максимальный масштаб
	MaxScale = 3.0
	// ZoomSensitivity converts wheel delta units into an exponent of the zoom
	// factor: one notch of a typical mouse wheel (100 units) is about 10%.
	ZoomSensitivity = 0.001
	// DefaultPanSpeed множитель скорости панорамирования по умолчанию
	DefaultPanSpeed = 1.0
)

// View is the local camera. It is never synchronized across clients.
type View struct {
	Scale   float64 `json:"scale" yaml:"scale"`
	OffsetX float64 `json:"offsetX" yaml:"offset_x"`
	OffsetY float64 `json:"offsetY" yaml:"offset_y"`
}

// Default returns the identity view.
func Default() View {
	return View{Scale: 1}
}

// Clamp limits scale to [MinScale, MaxScale]. NaN maps to MinScale so a
// degenerate scale can never reach a division.
func Clamp(scale float64) float64 {
	if math.IsNaN(scale) || scale < MinScale {
		return MinScale
	}
	if scale > MaxScale {
		return MaxScale
	}
	return scale
}

// Normalize returns v with its scale clamped and non-finite offsets reset.
func Normalize(v View) View {
	if math.IsNaN(v.Scale) || v.Scale == 0 {
		return Default()
	}
	v.Scale = Clamp(v.Scale)
	if math.IsNaN(v.OffsetX) || math.IsInf(v.OffsetX, 0) {
		v.OffsetX = 0
	}
	if math.IsNaN(v.OffsetY) || math.IsInf(v.OffsetY, 0) {
		v.OffsetY = 0
	}
	return v
}

// ScreenToWorld maps a screen point to world space: (p - offset) / scale.
func ScreenToWorld(p models.Point, v View) models.Point {
	v = Normalize(v)
	return models.Point{
		X: (p.X - v.OffsetX) / v.Scale,
		Y: (p.Y - v.OffsetY) / v.Scale,
	}
}

// WorldToScreen is the inverse of ScreenToWorld.
func WorldToScreen(p models.Point, v View) models.Point {
	v = Normalize(v)
	return models.Point{
		X: p.X*v.Scale + v.OffsetX,
		Y: p.Y*v.Scale + v.OffsetY,
	}
}

// ApplyZoom zooms around pivot. A positive wheelDelta (wheel pulled towards
// the user) zooms out. The world point under pivot stays under pivot.
func ApplyZoom(v View, pivot models.Point, wheelDelta float64) View {
	v = Normalize(v)
	if math.IsNaN(wheelDelta) || math.IsInf(wheelDelta, 0) {
		return v
	}

	anchor := ScreenToWorld(pivot, v)
	scale := Clamp(v.Scale * math.Exp(-wheelDelta*ZoomSensitivity))

	// offset выбирается так, чтобы anchor снова оказался под курсором
	return View{
		Scale:   scale,
		OffsetX: pivot.X - anchor.X*scale,
		OffsetY: pivot.Y - anchor.Y*scale,
	}
}

// ZoomTo sets an absolute scale around pivot.
func ZoomTo(v View, pivot models.Point, scale float64) View {
	v = Normalize(v)
	anchor := ScreenToWorld(pivot, v)
	scale = Clamp(scale)
	return View{
		Scale:   scale,
		OffsetX: pivot.X - anchor.X*scale,
		OffsetY: pivot.Y - anchor.Y*scale,
	}
}

// ApplyPan translates the offset by delta*speed/scale, which keeps the
// perceived pan speed constant across zoom levels.
func ApplyPan(v View, delta models.Point, speed float64) View {
	v = Normalize(v)
	v.OffsetX += delta.X * speed / v.Scale
	v.OffsetY += delta.Y * speed / v.Scale
	return v
}
