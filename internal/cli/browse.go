package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/thumbs/internal/grid"
)

var (
	errUsage    = errors.New("usage")
	errNoImages = errors.New("no images left")
)

// BrowseCmd returns the browse command.
func BrowseCmd(a *app) *Command {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	recursive := fs.BoolP("recursive", "r", false, "Descend into directories")
	width := fs.Int("width", 800, "Viewport width in `px`")
	height := fs.Int("height", 600, "Viewport height in `px`")

	return &Command{
		Flags: fs,
		Usage: "browse [-r] <path>...",
		Short: "Drive the thumbnail grid interactively",
		Long: "Open an interactive session on a thumbnail grid. Each line is one command;\n" +
			"type 'help' for the list. Thumbnails are loaded in the background the\n" +
			"way a viewer would load them, visible ones first.",
		Examples: []string{
			"browse -r ~/Pictures",
			"browse --width 1920 --height 1080 *.jpg",
		},
		NeedsPaths: true,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execBrowse(ctx, o, a, args, *recursive, grid.Viewport{W: *width, H: *height})
		},
	}
}

func execBrowse(ctx context.Context, o *IO, a *app, args []string, recursive bool, vp grid.Viewport) error {
	paths := collectFiles(o, a.fs, a.cfg.WorkDir, args, recursive)
	if len(paths) == 0 {
		return ErrNoFiles
	}

	files := grid.NewFileList(paths...)

	e, err := a.newEngine(files)
	if err != nil {
		return err
	}

	defer e.Close()

	pf, stop, err := a.startPrefetcher(ctx, e)
	if err != nil {
		return err
	}

	s := &session{o: o, app: a, engine: e, pf: pf, vp: vp}
	p := newPrompter(o.In(), a.env["HOME"])

	runErr := s.loop(ctx, p)

	return errors.Join(runErr, p.Close(), stop())
}

// session is one browse run. It owns the engine; only decoding happens on
// the pool.
type session struct {
	o      *IO
	app    *app
	engine *grid.Engine
	pf     *grid.Prefetcher
	vp     grid.Viewport
	frame  grid.Frame
}

func (s *session) loop(ctx context.Context, p prompter) error {
	err := s.refresh(ctx)
	if err != nil {
		return err
	}

	for {
		line, err := p.Prompt("thumbs> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		name, args := strings.ToLower(fields[0]), fields[1:]

		if name == "quit" || name == "exit" || name == "q" {
			return nil
		}

		err = s.exec(ctx, name, args)

		switch {
		case err == nil:
		case errors.Is(err, errNoImages), ctx.Err() != nil:
			return err
		default:
			s.o.Println("error:", err)
		}

		err = s.refresh(ctx)
		if err != nil {
			return err
		}
	}
}

//nolint:cyclop // one case per command
func (s *session) exec(ctx context.Context, name string, args []string) error {
	e := s.engine

	switch name {
	case "help", "?":
		s.printHelp()

	case "h", "j", "k", "l", "left", "down", "up", "right":
		dir, err := grid.ParseDirection(name)
		if err != nil {
			return err
		}

		n, err := optInt(args, 1)
		if err != nil {
			return err
		}

		e.MoveSelection(dir, n)

	case "g", "select":
		n, err := needInt(args, 0, "select <index>")
		if err != nil {
			return err
		}

		return e.SetSelection(n)

	case "scroll":
		if len(args) == 0 {
			return fmt.Errorf("%w: scroll up|down [page]", errUsage)
		}

		dir, err := grid.ParseDirection(args[0])
		if err != nil {
			return err
		}

		e.Scroll(dir, len(args) > 1 && args[1] == "page")

	case "zoom":
		if len(args) != 1 {
			return fmt.Errorf("%w: zoom +|-", errUsage)
		}

		switch args[0] {
		case "+", "in":
			e.Zoom(1)
		case "-", "out":
			e.Zoom(-1)
		default:
			return fmt.Errorf("%w: zoom +|-", errUsage)
		}

	case "size":
		return s.resize(args)

	case "click":
		return s.click(args)

	case "mark":
		sel := e.Selection()

		return e.Mark(sel, !e.Files().At(sel).Flags.Has(grid.FlagMarked))

	case "reload":
		sel := e.Selection()

		err := e.Load(sel, true, false)
		if err != nil {
			e.Drop(sel, err)
		}

	case "rm", "remove":
		err := e.Remove(e.Selection())
		if err != nil {
			return err
		}

	case "square":
		e.ToggleSquare()

	case "tick":
		n, err := optInt(args, 1)
		if err != nil {
			return err
		}

		done := 0
		for done < n && e.Tick() {
			done++
		}

		s.o.Printf("ticks=%d\n", done)

	case "wait":
		return s.pf.Run(ctx)

	case "show":
		s.printFrame()

	case "info":
		s.printInfo()

	default:
		return fmt.Errorf("%w: %s (type 'help' for commands)", ErrUnknownCommand, name)
	}

	if e.Count() == 0 {
		return errNoImages
	}

	return nil
}

// refresh renders, loads what is visible and renders again, so the frame
// shown next holds every visible thumbnail. Prefetch results that are ready
// are applied on the way.
func (s *session) refresh(ctx context.Context) error {
	if s.engine.Count() == 0 {
		return errNoImages
	}

	s.render()

	for {
		s.pf.Pump()

		inView, _ := s.engine.Pending()
		if !inView {
			break
		}

		if s.pf.InFlight() == 0 {
			s.engine.Tick()

			continue
		}

		if !s.pf.Await(ctx) {
			return ctx.Err()
		}
	}

	s.pf.Poll()
	s.render()

	if s.engine.Count() == 0 {
		return errNoImages
	}

	return nil
}

func (s *session) render() {
	frame, ok := s.engine.Render(s.vp)
	if ok {
		s.frame = frame
	}
}

func (s *session) resize(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: size <w> <h> [bar]", errUsage)
	}

	var vals [3]int

	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 0 {
			return fmt.Errorf("%w: size <w> <h> [bar]", errUsage)
		}

		vals[i] = v
	}

	s.vp = grid.Viewport{W: vals[0], H: vals[1] + vals[2], BarHeight: vals[2]}
	s.engine.SetDirty()

	return nil
}

func (s *session) click(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: click <x> <y>", errUsage)
	}

	x, errX := strconv.Atoi(args[0])
	y, errY := strconv.Atoi(args[1])

	if errX != nil || errY != nil {
		return fmt.Errorf("%w: click <x> <y>", errUsage)
	}

	n := s.engine.Translate(x, y)
	if n < 0 {
		s.o.Println("hit=none")

		return nil
	}

	s.o.Printf("hit=%d\n", n)

	return s.engine.SetSelection(n)
}

func (s *session) printFrame() {
	f := s.frame
	files := s.engine.Files()

	s.o.Printf("visible=%s loaded=%s sel=%d cols=%d rows=%d cell=%d square=%t cells=%d\n",
		f.Visible, f.Loaded, f.Selected, f.Cols, f.Rows, f.CellSize, f.Square, len(f.Cells))

	for _, c := range f.Cells {
		sel, mark := ' ', ' '
		if c.Selected {
			sel = '*'
		}

		if c.Marked {
			mark = '+'
		}

		s.o.Printf("%5d %c%c %v %s\n", c.Index, sel, mark, c.Dst, filepath.Base(files.At(c.Index).Path))
	}

	if !f.Highlight.Empty() {
		s.o.Printf("highlight=%v\n", f.Highlight)
	}
}

func (s *session) printInfo() {
	e := s.engine
	n := e.Selection()
	fe := e.Files().At(n)
	slot := e.Slot(n)
	level, size := e.ZoomLevel()
	next, inView := e.Cursors()

	st, err := s.app.cache.Status(fe.Path)
	status := st.String()

	if err != nil {
		status = "error: " + err.Error()
	}

	s.o.Printf("index=%d/%d\n", n, e.Count())
	s.o.Printf("path=%s\n", fe.Path)
	s.o.Printf("flags=%s\n", fe.Flags)

	if slot.Image != nil {
		s.o.Printf("thumb=%dx%d\n", slot.W, slot.H)
	} else {
		s.o.Println("thumb=none")
	}

	s.o.Printf("cache=%s\n", status)
	s.o.Printf("zoom=%d (%dpx)\n", level, size)
	s.o.Printf("resident=%d\n", e.Resident())
	s.o.Printf("cursors=%d,%d\n", next, inView)
	s.o.Printf("inflight=%d\n", s.pf.InFlight())
}

func (s *session) printHelp() {
	s.o.Println("Commands:")

	for _, line := range browseHelp {
		s.o.Println("  " + line)
	}
}

var browseHelp = []string{
	"h|j|k|l [n]          move the selection",
	"select <index>       select an index",
	"scroll up|down [page] scroll a row or a screen",
	"zoom +|-             change the thumbnail size",
	"size <w> <h> [bar]   resize the viewport",
	"click <x> <y>        select the thumbnail at a point",
	"mark                 toggle the mark on the selection",
	"reload               reload the selection, bypassing the cache",
	"rm                   remove the selection from the grid",
	"square               toggle square thumbnails",
	"tick [n]             run idle load steps on this goroutine",
	"wait                 load everything in the background and wait",
	"show                 print the current frame",
	"info                 describe the selection",
	"quit                 leave",
}

func optInt(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: expected a number, got %q", errUsage, args[0])
	}

	return n, nil
}

func needInt(args []string, idx int, usage string) (int, error) {
	if len(args) <= idx {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}

	return optInt(args[idx:], 0)
}

// prompter reads one command line at a time.
type prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// newPrompter returns a line editor with history when in is a terminal, and
// a plain line reader otherwise.
func newPrompter(in io.Reader, home string) prompter {
	f, ok := in.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) || !liner.TerminalSupported() {
		return &scanPrompter{sc: bufio.NewScanner(in)}
	}

	p := &linePrompter{state: liner.NewLiner()}
	p.state.SetCtrlCAborts(true)
	p.state.SetCompleter(completeCommand)

	if home != "" {
		p.history = filepath.Join(home, ".thumbs_history")

		if h, err := os.Open(p.history); err == nil {
			_, _ = p.state.ReadHistory(h)
			_ = h.Close()
		}
	}

	return p
}

type scanPrompter struct {
	sc *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if p.sc.Scan() {
		return p.sc.Text(), nil
	}

	if err := p.sc.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (p *scanPrompter) Close() error { return nil }

type linePrompter struct {
	state   *liner.State
	history string
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	if err == nil && strings.TrimSpace(line) != "" {
		p.state.AppendHistory(line)
	}

	return line, err
}

func (p *linePrompter) Close() error {
	if p.history != "" {
		if h, err := os.Create(p.history); err == nil {
			_, _ = p.state.WriteHistory(h)
			_ = h.Close()
		}
	}

	return p.state.Close()
}

func completeCommand(line string) []string {
	var out []string

	for _, h := range browseHelp {
		name, _, _ := strings.Cut(h, " ")
		for _, alt := range strings.Split(name, "|") {
			if strings.HasPrefix(alt, line) {
				out = append(out, alt)
			}
		}
	}

	return out
}
