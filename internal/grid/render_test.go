package grid_test

import (
	"image"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/thumbs/internal/grid"
)

func Test_Render_Returns_False_When_Nothing_Changed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)
	vp := viewport(5, 4)

	if _, ok := f.engine.Render(vp); !ok {
		t.Fatal("first render produced no frame")
	}

	if _, ok := f.engine.Render(vp); ok {
		t.Fatal("second render produced a frame without changes")
	}

	f.engine.SetDirty()

	if _, ok := f.engine.Render(vp); !ok {
		t.Fatal("render after SetDirty produced no frame")
	}
}

func Test_Render_Centers_Grid_When_Fewer_Files_Than_Cells(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	vp := viewport(5, 4)
	vp.H += 20
	vp.BarHeight = 20

	frame, _ := f.engine.Render(vp)

	if frame.Cols != 5 || frame.Rows != 4 {
		t.Fatalf("layout=%dx%d, want 5x4", frame.Cols, frame.Rows)
	}

	// border=3 for 128px cells, plus the fixed 3px inset.
	if got, want := frame.Origin, image.Pt(144, 243); got != want {
		t.Fatalf("origin=%v, want %v", got, want)
	}

	if got, want := frame.Visible, (grid.IndexRange{Start: 0, End: 3}); got != want {
		t.Fatalf("visible=%s, want %s", got, want)
	}

	if frame.BorderWidth != 3 || frame.Dim != 138 || frame.CellSize != 128 {
		t.Fatalf("border=%d dim=%d cell=%d", frame.BorderWidth, frame.Dim, frame.CellSize)
	}
}

func Test_Render_Fills_Last_Screen_When_Selection_Near_End(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 23)
	vp := viewport(5, 4)

	if err := f.engine.SetSelection(22); err != nil {
		t.Fatal(err)
	}

	frame, _ := f.engine.Render(vp)

	if got, want := frame.Visible, (grid.IndexRange{Start: 5, End: 23}); got != want {
		t.Fatalf("visible=%s, want %s", got, want)
	}
}

func Test_Render_Pulls_View_Back_When_Files_Removed_From_End(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 30)
	vp := viewport(5, 4)
	f.engine.Render(vp)

	if !f.engine.Scroll(grid.DirDown, true) {
		t.Fatal("scroll did not move")
	}

	for n := 29; n >= 23; n-- {
		if err := f.engine.Remove(n); err != nil {
			t.Fatal(err)
		}
	}

	frame, _ := f.engine.Render(vp)

	if got, want := frame.Visible, (grid.IndexRange{Start: 5, End: 23}); got != want {
		t.Fatalf("visible=%s, want %s", got, want)
	}

	if frame.Visible.Start%int32(frame.Cols) != 0 {
		t.Fatalf("visible start %d not row aligned", frame.Visible.Start)
	}
}

func Test_Render_Lays_Out_Cell_When_Thumbnail_Loaded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	vp := viewport(5, 4)

	if err := f.engine.Mark(0, true); err != nil {
		t.Fatal(err)
	}

	frame := f.settle(t, vp)

	if len(frame.Cells) != 1 {
		t.Fatalf("cells=%d, want 1", len(frame.Cells))
	}

	got := frame.Cells[0]
	want := grid.Cell{
		Index:    0,
		Image:    got.Image,
		Src:      image.Rect(0, 0, 170, 128),
		Dst:      image.Rect(282, 229, 410, 325),
		Mark:     image.Rect(326, 257, 366, 297),
		Marked:   true,
		Selected: true,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cell mismatch (-want +got):\n%s", diff)
	}

	if want := image.Rect(279, 226, 412, 327); frame.Highlight != want {
		t.Fatalf("highlight=%v, want %v", frame.Highlight, want)
	}
}

func Test_Render_Crops_Center_Square_When_Square_Mode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	vp := viewport(5, 4)
	f.settle(t, vp)

	f.engine.ToggleSquare()

	frame, ok := f.engine.Render(vp)
	if !ok {
		t.Fatal("toggle did not dirty the grid")
	}

	cell := frame.Cells[0]

	if want := image.Rect(21, 0, 149, 128); cell.Src != want {
		t.Fatalf("src=%v, want %v", cell.Src, want)
	}

	if want := image.Rect(282, 213, 410, 341); cell.Dst != want {
		t.Fatalf("dst=%v, want %v", cell.Dst, want)
	}

	if want := image.Rect(279, 210, 412, 343); frame.Highlight != want {
		t.Fatalf("highlight=%v, want %v", frame.Highlight, want)
	}
}

func Test_Render_Evicts_Thumbnails_When_Scrolled_Out_Of_Margin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100, func(o *grid.Options) { o.PrefetchMargin = 5 })
	vp := viewport(5, 4)
	f.settle(t, vp)

	if got := f.engine.Resident(); got != 20 {
		t.Fatalf("resident=%d, want 20", got)
	}

	// One row down: the first row is still inside the margin.
	f.engine.Scroll(grid.DirDown, false)
	f.engine.Render(vp)

	if f.engine.Slot(0).Image == nil {
		t.Fatal("slot 0 evicted while inside the prefetch margin")
	}

	// One screen further: everything from the first screen is out.
	f.engine.Scroll(grid.DirDown, true)
	f.engine.Render(vp)

	assertResidentWithin(t, f.engine, f.engine.Loaded())

	if got := f.engine.Resident(); got != 0 {
		t.Fatalf("resident=%d, want 0 after leaving the first screen", got)
	}

	if got := f.codec.liveCount(); got != 0 {
		t.Fatalf("live images=%d, want 0", got)
	}
}

func Test_Render_Lowers_InView_Cursor_To_First_Missing_Slot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 40)
	vp := viewport(5, 4)
	f.settle(t, vp)

	if err := f.engine.Reload(7); err != nil {
		t.Fatal(err)
	}

	f.engine.Render(vp)

	if _, next := f.engine.Cursors(); next != 7 {
		t.Fatalf("nextToLoadInView=%d, want 7", next)
	}

	if inView, _ := f.engine.Pending(); !inView {
		t.Fatal("reloaded slot not pending")
	}

	f.engine.Tick()

	if f.engine.Slot(7).Image == nil {
		t.Fatal("Tick did not reload slot 7")
	}

	if _, next := f.engine.Cursors(); next != 20 {
		t.Fatalf("nextToLoadInView=%d, want 20 (visible end)", next)
	}
}

func Test_Engine_Keeps_Residents_Inside_Loaded_Range_When_Operations_Random(t *testing.T) {
	t.Parallel()

	for seed := range uint64(20) {
		rng := rand.New(rand.NewPCG(seed, 99))
		margin := rng.IntN(12)

		f := newFixture(t, 50+rng.IntN(150), func(o *grid.Options) { o.PrefetchMargin = margin })
		vp := viewport(1+rng.IntN(8), 1+rng.IntN(6))

		for step := range 400 {
			count := f.engine.Count()
			initBefore, inViewBefore := f.engine.Cursors()
			loadStep := false

			switch rng.IntN(9) {
			case 0:
				f.engine.Scroll(grid.Direction(rng.IntN(2)), rng.IntN(2) == 0)
			case 1:
				f.engine.MoveSelection(grid.Direction(rng.IntN(4)), rng.IntN(6))
			case 2:
				f.engine.Zoom(rng.IntN(3) - 1)
			case 3:
				f.engine.ToggleSquare()
			case 4:
				if n := f.engine.Count(); n > 1 {
					_ = f.engine.Remove(rng.IntN(n))
				}
			case 5:
				if n := f.engine.Count(); n > 0 {
					_ = f.engine.Load(rng.IntN(n), rng.IntN(2) == 0, false)
					loadStep = true
				}
			default:
				f.engine.Tick()
				loadStep = true
			}

			if loadStep {
				initAfter, inViewAfter := f.engine.Cursors()

				if f.engine.Count() == count && (initAfter < initBefore || inViewAfter < inViewBefore) {
					t.Fatalf("seed %d step %d: cursors went back from %d,%d to %d,%d",
						seed, step, initBefore, inViewBefore, initAfter, inViewAfter)
				}

				if initAfter > f.engine.Count() || inViewAfter > int(f.engine.Visible().End) {
					t.Fatalf("seed %d step %d: cursors %d,%d past count %d or visible %s",
						seed, step, initAfter, inViewAfter, f.engine.Count(), f.engine.Visible())
				}
			}

			if _, ok := f.engine.Render(vp); ok {
				keep := f.engine.Loaded()
				for i := range f.engine.Count() {
					if f.engine.Slot(i).Image != nil && !keep.Contains(int32(i)) {
						t.Fatalf("seed %d step %d: slot %d resident outside %s", seed, step, i, keep)
					}
				}
			}

			if got, want := f.codec.liveCount(), f.engine.Resident(); got != want {
				t.Fatalf("seed %d step %d: live images=%d, resident=%d", seed, step, got, want)
			}
		}

		if got := f.codec.doubleReleases(); got != 0 {
			t.Fatalf("seed %d: %d double releases", seed, got)
		}

		f.engine.Close()

		if got := f.codec.liveCount(); got != 0 {
			t.Fatalf("seed %d: %d images leaked after Close", seed, got)
		}
	}
}
