package sync

import (
	"slices"

	"github.com/iudanet/boardsync/internal/models"
)

// History is the shared undo/redo log of strokes. Every stroke ever added
// lives in exactly one of the two stacks until Clear.
//
// History is a plain value without locking; Strokes serializes access.
type History struct {
	undo []models.Stroke
	redo []models.Stroke
}

// Push appends s to the undo stack. The redo stack is left untouched.
func (h *History) Push(s models.Stroke) {
	h.undo = append(h.undo, s)
}

// ClearRedo drops every undone stroke and returns what was dropped.
func (h *History) ClearRedo() []models.Stroke {
	dropped := h.redo
	h.redo = nil
	return dropped
}

// Unpush removes the newest undo stack entry equal to s, the reverse of
// Push. Entries pushed after s stay in place.
func (h *History) Unpush(s models.Stroke) bool {
	for i := len(h.undo) - 1; i >= 0; i-- {
		if sameStroke(h.undo[i], s) {
			h.undo = slices.Delete(h.undo, i, i+1)
			return true
		}
	}
	return false
}

// Restore puts back stacks taken away by ClearRedo or Clear. Restored
// entries are older than anything added since, so they go underneath.
func (h *History) Restore(undo, redo []models.Stroke) {
	h.undo = append(cloneStrokes(undo), h.undo...)
	h.redo = append(cloneStrokes(redo), h.redo...)
}

// Undo moves the newest stroke from the undo stack to the redo stack.
// Returns false when there is nothing to undo.
func (h *History) Undo() bool {
	if len(h.undo) == 0 {
		return false
	}
	last := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, last)
	return true
}

// Redo moves the newest undone stroke back onto the undo stack.
// Returns false when there is nothing to redo.
func (h *History) Redo() bool {
	if len(h.redo) == 0 {
		return false
	}
	last := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, last)
	return true
}

// Clear empties both stacks and returns their previous contents.
func (h *History) Clear() (undo, redo []models.Stroke) {
	undo, redo = h.undo, h.redo
	h.undo = nil
	h.redo = nil
	return undo, redo
}

// Load replaces the undo stack with strokes and empties the redo stack.
func (h *History) Load(strokes []models.Stroke) {
	h.undo = cloneStrokes(strokes)
	h.redo = nil
}

// UndoStack returns a copy of the undo stack, oldest first.
func (h *History) UndoStack() []models.Stroke {
	return cloneStrokes(h.undo)
}

// RedoStack returns a copy of the redo stack in the order Redo restores it:
// the most recently undone stroke first.
func (h *History) RedoStack() []models.Stroke {
	out := cloneStrokes(h.redo)
	slices.Reverse(out)
	return out
}

// Visible returns the strokes to render, in drawing order.
func (h *History) Visible() []models.Stroke {
	return h.UndoStack()
}

func sameStroke(a, b models.Stroke) bool {
	return a.Erase == b.Erase && slices.Equal(a.Points, b.Points)
}

func cloneStrokes(in []models.Stroke) []models.Stroke {
	out := make([]models.Stroke, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
