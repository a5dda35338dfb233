package grid

import (
	"fmt"
	"strings"
)

// Direction is a navigation direction.
type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection accepts up/down/left/right and the vi keys k/j/h/l.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "up", "k":
		return DirUp, nil
	case "down", "j":
		return DirDown, nil
	case "left", "h":
		return DirLeft, nil
	case "right", "l":
		return DirRight, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// MoveSelection moves the selection cnt cells (at least one) in dir using
// the column count of the last render. Moving down onto a missing cell of
// the last row stops at the last file. The view follows the selection.
// Returns whether the selection changed.
func (e *Engine) MoveSelection(dir Direction, cnt int) bool {
	count := len(e.slots)
	if count == 0 {
		return false
	}

	cnt = max(cnt, 1)
	old := e.sel

	switch dir {
	case DirUp:
		e.sel = max(e.sel-cnt*e.cols, e.sel%e.cols)
	case DirDown:
		last := e.cols*((count-1)/e.cols) + min((count-1)%e.cols, e.sel%e.cols)
		e.sel = min(e.sel+cnt*e.cols, last)
	case DirLeft:
		e.sel = max(e.sel-cnt, 0)
	case DirRight:
		e.sel = min(e.sel+cnt, count-1)
	}

	if e.sel == old {
		return false
	}

	e.checkView(false)
	e.dirty = true

	return true
}

// SetSelection selects n and scrolls it into view.
func (e *Engine) SetSelection(n int) error {
	if n < 0 || n >= len(e.slots) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, n)
	}

	if n != e.sel {
		e.sel = n
		e.checkView(false)
		e.dirty = true
	}

	return nil
}

// Scroll moves the view one row, or one screen if whole is set, up or down.
// Left and right do nothing. The selection is dragged along so it stays in
// view. Returns whether the view moved.
func (e *Engine) Scroll(dir Direction, whole bool) bool {
	if dir != DirUp && dir != DirDown {
		return false
	}

	count := len(e.slots)
	old := int(e.visible.Start)
	start := old

	d := e.cols
	if whole {
		d *= e.rows
	}

	if dir == DirDown {
		last := count - e.cols*e.rows
		if count%e.cols != 0 {
			last += e.cols - count%e.cols
		}

		start = min(start+d, max(last, 0))
	} else {
		start = max(start-d, 0)
	}

	if start == old {
		return false
	}

	e.visible.Start = int32(start)
	e.checkView(true)
	e.dirty = true

	return true
}

// checkView reconciles the view start and the selection. After a scroll the
// selection is moved into the view; otherwise the view is moved to the
// selection. The view start is always aligned to a row.
func (e *Engine) checkView(scrolled bool) {
	count := len(e.slots)
	start := int(e.visible.Start)
	start -= start % e.cols
	r := e.sel % e.cols
	screen := e.cols * e.rows

	if scrolled {
		switch {
		case e.sel >= start+screen:
			e.sel = start + r + e.cols*(e.rows-1)
		case e.sel < start:
			e.sel = start + r
		}

		// The last screen can have a short bottom row.
		if count > 0 && e.sel >= count {
			e.sel = count - 1
		}
	} else {
		switch {
		case start+screen <= e.sel:
			start = e.sel - r - e.cols*(e.rows-1)
			e.dirty = true
		case start > e.sel:
			start = e.sel - r
			e.dirty = true
		}
	}

	e.visible.Start = int32(start)
}

// Translate maps a point in the viewport to the index of the cell under it,
// or -1 if there is none.
func (e *Engine) Translate(x, y int) int {
	if x < e.x || y < e.y {
		return -1
	}

	col := (x - e.x) / e.dim
	if col >= e.cols {
		return -1
	}

	n := int(e.visible.Start) + (y-e.y)/e.dim*e.cols + col
	if n >= len(e.slots) {
		return -1
	}

	return n
}

// Zoom steps one zoom level toward the sign of d, clamped to the available
// sizes. A change drops every thumbnail. Returns whether the level changed.
func (e *Engine) Zoom(d int) bool {
	old := e.zoom

	switch {
	case d < 0:
		e.zoom--
	case d > 0:
		e.zoom++
	}

	e.zoom = min(max(e.zoom, 0), len(e.sizes)-1)
	e.applyZoom()

	if e.zoom == old {
		return false
	}

	e.unloadAll()
	e.dirty = true

	return true
}

func (e *Engine) applyZoom() {
	size := e.sizes[e.zoom]
	e.border = min(((size-1)>>5)+1, MaxBorderWidth)
	e.dim = size + e.gap
}

// ToggleSquare switches between aspect-preserving cells and center-cropped
// square cells.
func (e *Engine) ToggleSquare() {
	e.square = !e.square
	e.dirty = true
}
