// Command vlist browses a large synthetic list in the terminal through the
// segment cache, the pagination view and the viewport engine.
//
// Keys: ↑/↓ PgUp/PgDn move, Home/End jump, d removes the highlighted item,
// r refreshes, o flips the order, +/- change the column count, q quits.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"
	flag "github.com/spf13/pflag"

	"github.com/IvanBrykalov/pagecache/endpoint"
	"github.com/IvanBrykalov/pagecache/internal/config"
	"github.com/IvanBrykalov/pagecache/internal/setup"
	"github.com/IvanBrykalov/pagecache/internal/term"
	"github.com/IvanBrykalov/pagecache/reactive"
	"github.com/IvanBrykalov/pagecache/view"
	"github.com/IvanBrykalov/pagecache/viewport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "vlist:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("vlist", flag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "", "JSONC config file")
	logPath := fs.String("log-file", "", "write logs to this file (default: discard)")
	var staged config.Config
	config.RegisterFlags(fs, &staged)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if err := config.ApplyFlags(fs, &cfg, staged); err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log, err := setup.Logger(cfg, logOut)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	a := newApp(cfg, screen, log)
	defer a.close()
	a.loop()
	return nil
}

// app owns the screen and the scroll position the engine observes.
type app struct {
	screen tcell.Screen
	render *term.Renderer
	log    *slog.Logger

	order *reactive.Value[setup.Order]
	ep    *endpoint.Endpoint[string, setup.Order]
	pages *view.Pagination[string]
	eng   *viewport.Engine

	mu        sync.Mutex
	scrollTop float64
	cursor    int
	columns   int
	data      view.PaginationData[string]
	lastError string
}

func newApp(cfg config.Config, screen tcell.Screen, log *slog.Logger) *app {
	a := &app{
		screen:  screen,
		render:  term.New(screen, term.DefaultStyles()),
		log:     log,
		order:   reactive.NewValue(setup.Order{}),
		columns: cfg.Viewport.Columns,
	}

	src := setup.Source(cfg)
	a.ep = endpoint.New(endpoint.Options[string, setup.Order]{
		Filter:             a.order,
		Request:            setup.Ordered(setup.Fetch(cfg, src), src.Len),
		HandleError:        a.handleError,
		SegmentSize:        cfg.Cache.SegmentSize,
		MaxSegments:        cfg.Cache.MaxSegments,
		Policy:             setup.Policy(cfg),
		MaxConcurrentLoads: cfg.Cache.MaxConcurrentLoads,
		Logger:             log,
	})
	a.pages = view.NewPagination[string](a.ep, view.PaginationOptions{
		QueryDelay: cfg.Viewport.QueryDelay.Duration,
		Logger:     log,
	})
	a.eng = viewport.New(viewport.Config{
		RowHeight:      cfg.Viewport.RowHeight,
		ColumnCount:    cfg.Viewport.Columns,
		BufferRows:     cfg.Viewport.BufferRows,
		MinUpdateDelta: cfg.Viewport.MinUpdateDelta,
		Scroller: viewport.ScrollerFunc(func(y float64) {
			a.mu.Lock()
			a.scrollTop = y
			a.mu.Unlock()
		}),
		Logger: log,
	})

	a.eng.Updates().Subscribe(func(w viewport.Window) { a.pages.DataUpdate(w.Offset, w.Limit) })
	a.pages.Data().Subscribe(func(d view.PaginationData[string]) {
		a.mu.Lock()
		wasKnown := a.data.Metrics.TotalKnown
		a.data = d
		if !d.Metrics.TotalKnown {
			a.cursor = 0
		}
		a.mu.Unlock()
		switch {
		case d.Metrics.TotalKnown:
			a.eng.SetData(d.Metrics.Total, d.Metrics.Offset, d.Metrics.Limit)
		case wasKnown:
			// the endpoint swapped instances; start over from the top
			a.eng.ClearData()
		}
		a.wake()
	})
	return a
}

func (a *app) close() {
	a.pages.Close()
	a.ep.Close()
}

func (a *app) handleError(title, message string) {
	a.log.Warn(title, "message", message)
	a.mu.Lock()
	a.lastError = title
	a.mu.Unlock()
	a.wake()
}

// wake asks the event loop to redraw from any goroutine.
func (a *app) wake() { _ = a.screen.PostEvent(tcell.NewEventInterrupt(nil)) }

func (a *app) loop() {
	a.resize()
	for {
		switch ev := a.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			a.screen.Sync()
			a.resize()
		case *tcell.EventKey:
			if !a.key(ev) {
				return
			}
		}
		a.draw()
	}
}

func (a *app) resize() {
	w, _ := a.screen.Size()
	a.eng.Resize(float64(w), float64(a.render.BodyHeight()))
}

// key handles one key press and reports whether to keep running.
func (a *app) key(ev *tcell.EventKey) bool {
	page := max(a.render.BodyHeight(), 1) * a.cols()
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		a.move(-a.cols())
	case tcell.KeyDown:
		a.move(a.cols())
	case tcell.KeyLeft:
		a.move(-1)
	case tcell.KeyRight:
		a.move(1)
	case tcell.KeyPgUp:
		a.move(-page)
	case tcell.KeyPgDn:
		a.move(page)
	case tcell.KeyHome:
		a.jump(0)
	case tcell.KeyEnd:
		a.jump(a.total() - 1)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'd':
			a.remove()
		case 'r':
			known := a.known()
			a.ep.Refresh()
			if !known {
				// nothing was shown yet, so no reset will re-propose a window
				a.eng.ClearData()
			}
		case 'o':
			a.order.Update(func(o *setup.Order) { o.Reverse = !o.Reverse })
		case '+':
			a.setColumns(a.cols() + 1)
		case '-':
			a.setColumns(a.cols() - 1)
		}
	}
	return true
}

func (a *app) cols() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.columns
}

func (a *app) known() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.Metrics.TotalKnown
}

func (a *app) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.Metrics.Total
}

func (a *app) setColumns(n int) {
	n = max(n, 1)
	a.mu.Lock()
	a.columns = n
	a.mu.Unlock()
	a.eng.SetColumns(n)
}

// move shifts the cursor and scrolls just enough to keep it visible.
func (a *app) move(delta int) {
	a.mu.Lock()
	total := a.data.Metrics.Total
	if total == 0 {
		a.mu.Unlock()
		return
	}
	a.cursor = min(max(a.cursor+delta, 0), total-1)
	row := float64(a.cursor / a.columns)
	body := float64(max(a.render.BodyHeight(), 1))
	top := a.scrollTop
	switch {
	case row < top:
		top = row
	case row >= top+body:
		top = row - body + 1
	}
	changed := top != a.scrollTop
	a.scrollTop = top
	a.mu.Unlock()

	if changed {
		a.eng.Scroll(top)
	}
}

func (a *app) jump(item int) {
	a.mu.Lock()
	a.cursor = max(item, 0)
	a.mu.Unlock()
	a.eng.NavigateTo(item)
}

func (a *app) remove() {
	a.mu.Lock()
	cursor := a.cursor
	a.mu.Unlock()
	if !a.ep.Proxy().Remove(cursor) {
		a.log.Debug("remove ignored, item not resident", "index", cursor)
		return
	}
	a.move(0)
}

func (a *app) draw() {
	a.mu.Lock()
	d := a.data
	cols := a.columns
	first := int(a.scrollTop)
	cursor := a.cursor
	lastError := a.lastError
	a.mu.Unlock()

	body := a.render.BodyHeight()
	from := first * cols
	to := from + body*cols
	if d.Metrics.TotalKnown {
		to = min(to, d.Metrics.Total)
	}

	cells := make([]term.Cell, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		c := term.Cell{Index: i}
		if j := i - d.Metrics.Offset; j >= 0 && j < len(d.Result) {
			c.Text, c.Loaded = d.Result[j], true
		}
		cells = append(cells, c)
	}

	v := a.eng.ViewState()
	status := fmt.Sprintf(" %d-%d of %d  cols=%d", v.ItemOffset, v.ItemOffset+v.ItemLimit, v.ItemTotal, cols)
	if !d.Metrics.TotalKnown {
		status = " loading…"
	}
	if lastError != "" {
		status += "  [" + lastError + "]"
	}
	stats := a.ep.Proxy().Stats()
	a.render.Draw(term.Frame{
		Title:    fmt.Sprintf(" vlist  segments=%d loading=%d loads=%d", stats.Segments, stats.Loading, stats.Loads),
		Status:   status,
		Columns:  cols,
		FirstRow: first,
		Cursor:   cursor,
		Cells:    cells,
	})
}
