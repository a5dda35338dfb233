package grid

import (
	"image"
	"log/slog"

	"github.com/calvinalkan/thumbs/internal/imaging"
	"github.com/calvinalkan/thumbs/internal/logger"
)

// Viewport is the drawable area a frame is laid out for, in pixels.
type Viewport struct {
	W, H int

	// BarHeight is reserved above the grid for a status bar.
	BarHeight int
}

// Cell is one thumbnail to draw.
type Cell struct {
	Index int
	Image image.Image

	// Src is the part of Image to draw, Dst where to draw it. Src is scaled
	// to Dst.
	Src image.Rectangle
	Dst image.Rectangle

	// Mark is the square to fill for marked files, empty otherwise.
	Mark image.Rectangle

	Marked   bool
	Selected bool
}

// Frame is everything an external renderer needs to draw the grid.
type Frame struct {
	Cols, Rows  int
	CellSize    int
	Dim         int
	BorderWidth int
	Origin      image.Point
	Square      bool

	Visible IndexRange
	Loaded  IndexRange

	Selected int

	// Highlight is the border rectangle around the selection, empty when the
	// selected thumbnail is not drawn.
	Highlight image.Rectangle

	// Cells holds the visible thumbnails that are loaded, in index order.
	// Missing ones are being loaded.
	Cells []Cell
}

// Render lays out the grid for vp. It returns false without doing anything
// when nothing changed since the last render.
//
// Rendering fixes the visible range: it starts on a row boundary, keeps the
// selection in view and never leaves empty rows at the bottom when enough
// files exist to fill the screen. Every resident thumbnail outside the
// visible range widened by the prefetch margin is unloaded, and the
// in-view load cursor is moved back to the first visible slot without a
// thumbnail.
func (e *Engine) Render(vp Viewport) (Frame, bool) {
	if !e.dirty {
		return Frame{}, false
	}

	count := len(e.slots)
	e.cols = max(1, vp.W/e.dim)
	e.rows = max(1, vp.H/e.dim)
	capacity := e.cols * e.rows

	shown := count

	if count < capacity {
		e.visible.Start = 0
	} else {
		e.checkView(false)

		shown = capacity
		start := int(e.visible.Start)

		overflow := start + shown - count
		if overflow >= e.cols {
			start -= overflow - overflow%e.cols
		}

		if overflow > 0 {
			shown -= overflow % e.cols
		}

		e.visible.Start = int32(start)
	}

	partialRow := 0
	if shown%e.cols != 0 {
		partialRow = 1
	}

	e.x = (vp.W-min(shown, e.cols)*e.dim)/2 + e.border + 3
	e.y = (vp.H-(shown/e.cols+partialRow)*e.dim)/2 + e.border + 3 + vp.BarHeight
	e.visible.End = e.visible.Start + int32(shown)
	e.nextToLoadInView = int(e.visible.End)

	e.loaded = e.visible.Widen(int32(e.margin))
	e.windowed = true
	if n := e.evict(e.loaded); n > 0 {
		e.metrics.ObserveEvictions(n)
		e.log.Debug("evicted thumbnails",
			slog.Int(logger.KeyCount, n),
			slog.String(logger.KeyLoaded, e.loaded.String()),
		)
	}

	cellSize := e.sizes[e.zoom]
	frame := Frame{
		Cols:        e.cols,
		Rows:        e.rows,
		CellSize:    cellSize,
		Dim:         e.dim,
		BorderWidth: e.border,
		Origin:      image.Pt(e.x, e.y),
		Square:      e.square,
		Visible:     e.visible,
		Loaded:      e.loaded,
		Selected:    e.sel,
		Cells:       make([]Cell, 0, shown),
	}

	gx, gy := e.x, e.y
	start := int(e.visible.Start)

	for i := start; i < int(e.visible.End); i++ {
		if e.slots[i].Image == nil {
			e.nextToLoadInView = min(e.nextToLoadInView, i)
		} else {
			frame.Cells = append(frame.Cells, e.layoutCell(i, gx, gy, cellSize))
		}

		if (i-start+1)%e.cols == 0 {
			gx = e.x
			gy += e.dim
		} else {
			gx += e.dim
		}
	}

	if e.visible.has(e.sel) && e.slots[e.sel].Image != nil {
		frame.Highlight = e.highlight(e.sel, cellSize)
	}

	e.dirty = false
	e.metrics.ObserveRender()

	e.log.Debug("rendered",
		slog.String(logger.KeyVisible, e.visible.String()),
		slog.Int(logger.KeyCols, e.cols),
		slog.Int(logger.KeyRows, e.rows),
		slog.Int(logger.KeyZoom, cellSize),
	)

	return frame, true
}

// layoutCell places slot i in the grid cell at (gx, gy) and records the
// position on the slot.
func (e *Engine) layoutCell(i, gx, gy, cellSize int) Cell {
	s := &e.slots[i]
	b := s.Image.Bounds()

	c := Cell{
		Index:    i,
		Image:    s.Image,
		Marked:   e.files.At(i).Flags.Has(FlagMarked),
		Selected: i == e.sel,
	}

	var drawW, drawH int

	if e.square {
		s.X, s.Y = gx, gy
		s.Scale = float64(cellSize) / float64(max(min(s.W, s.H), 1))
		c.Src = imaging.CenterSquare(s.W, s.H).Add(b.Min)
		drawW, drawH = cellSize, cellSize
	} else {
		s.Scale = float64(cellSize) / float64(max(s.W, s.H, 1))
		drawW, drawH = fitSize(s.W, s.H, cellSize)
		s.X = gx + (cellSize-drawW)/2
		s.Y = gy + (cellSize-drawH)/2
		c.Src = b
	}

	c.Dst = image.Rect(s.X, s.Y, s.X+drawW, s.Y+drawH)

	if c.Marked {
		mw := cellSize / 3
		mx := s.X - mw/2 + drawW/2
		my := s.Y - mw/2 + drawH/2
		c.Mark = image.Rect(mx, my, mx+mw, my+mw).Inset(markBorder)
	}

	return c
}

// highlight returns the selection border for slot n as laid out by the last
// render.
func (e *Engine) highlight(n, cellSize int) image.Rectangle {
	s := e.slots[n]
	offXY := (e.border+1)/2 + 1
	offWH := e.border + 2

	x, y := s.X-offXY, s.Y-offXY

	if e.square {
		size := max(min(s.W+offWH, s.H+offWH), cellSize)

		return image.Rect(x, y, x+size, y+size)
	}

	w, h := fitSize(s.W, s.H, cellSize)

	return image.Rect(x, y, x+w+offWH, y+h+offWH)
}

// fitSize scales w×h so the longer side is exactly cell.
func fitSize(w, h, cell int) (int, int) {
	if w <= 0 || h <= 0 {
		return cell, cell
	}

	if w >= h {
		return cell, h * cell / w
	}

	return w * cell / h, cell
}
