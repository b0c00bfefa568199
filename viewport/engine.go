package viewport

import (
	"log/slog"
	"math"
	"sync"

	"github.com/IvanBrykalov/pagecache/event"
)

// DefaultAspectRatio is the grid unit width/height ratio used when neither
// RowHeight nor AspectRatio is set.
const DefaultAspectRatio = 1.0

// Scroller applies a programmatic scroll position to the host container.
type Scroller interface {
	ScrollTo(scrollTop float64)
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func(scrollTop float64)

func (f ScrollerFunc) ScrollTo(scrollTop float64) { f(scrollTop) }

// Config configures an Engine. Zero values are safe:
//   - ColumnCount <= 0 => 1 (a row list)
//   - RowHeight <= 0   => unit height from content width / ColumnCount / AspectRatio
//   - AspectRatio <= 0 => DefaultAspectRatio
type Config struct {
	Padding Padding
	Buffer  Buffer

	// BufferRows, when positive, overrides Buffer with this many unit rows
	// on each side.
	BufferRows int

	RowHeight   float64
	ColumnCount int
	AspectRatio float64

	// MinUpdateDelta suppresses a Window until its offset or limit moved by
	// more than this many rows.
	MinUpdateDelta int

	// Scroller receives programmatic scroll positions. Optional.
	Scroller Scroller
	Logger   *slog.Logger
}

// Engine is the scroll geometry state machine of one container.
// All methods are safe for concurrent use; events are emitted after the
// engine's lock is released, on the calling goroutine.
type Engine struct {
	cfg Config
	log *slog.Logger

	mu         sync.Mutex
	width      float64 // client width, padding included
	height     float64 // client height, padding included
	sized      bool
	scrollTop  float64
	columns    int
	navigating bool

	total, offset, limit int
	hasData              bool

	propose Propose
	actual  Actual
	view    ViewState
	last    Window
	emitted bool

	windows event.Emitter[Window]
	layouts event.Emitter[Actual]
	views   event.Emitter[ViewState]
}

// New returns an Engine for cfg. It emits nothing until the first Resize.
func New(cfg Config) *Engine {
	if cfg.ColumnCount <= 0 {
		cfg.ColumnCount = 1
	}
	if cfg.AspectRatio <= 0 {
		cfg.AspectRatio = DefaultAspectRatio
	}
	if cfg.MinUpdateDelta < 0 {
		cfg.MinUpdateDelta = 0
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{cfg: cfg, log: log.With("component", "viewport"), columns: cfg.ColumnCount}
}

// Updates is the stream of windows to fetch.
func (e *Engine) Updates() *event.Emitter[Window] { return &e.windows }

// Layout is the stream of content geometry for the held window.
func (e *Engine) Layout() *event.Emitter[Actual] { return &e.layouts }

// ViewChanged is the stream of navigation read-outs.
func (e *Engine) ViewChanged() *event.Emitter[ViewState] { return &e.views }

// Propose returns the latest viewport-derived geometry.
func (e *Engine) Propose() Propose {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.propose
}

// Actual returns the latest data-derived geometry.
func (e *Engine) Actual() Actual {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actual
}

// ViewState returns the latest navigation read-out.
func (e *Engine) ViewState() ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// LastWindow returns the last emitted window; ok is false if none was
// emitted since construction or the last ClearData.
func (e *Engine) LastWindow() (w Window, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.emitted
}

// Resize records the container's client size, padding included.
func (e *Engine) Resize(width, height float64) {
	e.mu.Lock()
	if e.sized && width == e.width && height == e.height {
		e.mu.Unlock()
		return
	}
	old := e.snapshotLocked()
	e.width, e.height, e.sized = width, height, true
	e.resized(old)
}

// SetColumns changes the grid column count, keeping the first visible row
// anchored.
func (e *Engine) SetColumns(n int) {
	n = max(n, 1)
	e.mu.Lock()
	if n == e.columns {
		e.mu.Unlock()
		return
	}
	old := e.snapshotLocked()
	e.columns = n
	e.resized(old)
}

// Scroll records a scroll position reported by the host. Positions echoed
// while NavigateTo applies its own are ignored.
func (e *Engine) Scroll(scrollTop float64) {
	e.mu.Lock()
	if e.navigating {
		e.mu.Unlock()
		return
	}
	e.scrollTop = scrollTop
	out := e.recomputeLocked()
	e.mu.Unlock()
	e.flush(out)
}

// SetData records the window the consumer holds and its total.
func (e *Engine) SetData(total, offset, limit int) {
	e.mu.Lock()
	e.total, e.offset, e.limit, e.hasData = max(total, 0), max(offset, 0), max(limit, 0), true
	out := e.recomputeLocked()
	e.mu.Unlock()
	e.flush(out)
}

// ClearData marks the content as unknown: the container is scrolled to the
// top, the last emitted window is forgotten and a fresh window is proposed.
func (e *Engine) ClearData() {
	e.mu.Lock()
	e.hasData = false
	e.total, e.offset, e.limit = 0, 0, 0
	e.emitted = false
	e.mu.Unlock()

	e.applyScroll(0)
}

// NavigateTo scrolls so that item becomes the first visible row.
// It is ignored until the unit height is known.
func (e *Engine) NavigateTo(item int) {
	e.mu.Lock()
	unit, _ := e.unitLocked()
	if unit <= 0 {
		e.mu.Unlock()
		return
	}
	target := e.clampTo(e.actual, float64(max(item, 0)/e.columns)*unit + e.cfg.Padding.Top)
	same := target == e.scrollTop
	e.mu.Unlock()

	if !same {
		e.applyScroll(target)
	}
}

// applyScroll moves the host to scrollTop and recomputes exactly once.
func (e *Engine) applyScroll(scrollTop float64) {
	e.mu.Lock()
	e.navigating = true
	e.scrollTop = scrollTop
	e.mu.Unlock()

	if e.cfg.Scroller != nil {
		e.cfg.Scroller.ScrollTo(scrollTop)
	}

	e.mu.Lock()
	e.navigating = false
	e.scrollTop = scrollTop
	out := e.recomputeLocked()
	e.mu.Unlock()
	e.flush(out)
}

// -------------------- computation (mu held) --------------------

// unitLocked returns the unit height and width, or 0 if not yet derivable.
func (e *Engine) unitLocked() (height, width float64) {
	if !e.sized {
		return 0, 0
	}
	width = max(e.width-e.cfg.Padding.Left-e.cfg.Padding.Right, 0) / float64(e.columns)
	if e.cfg.RowHeight > 0 {
		return e.cfg.RowHeight, width
	}
	return width / e.cfg.AspectRatio, width
}

func (e *Engine) bufferLocked(unit float64) Buffer {
	if e.cfg.BufferRows > 0 {
		b := float64(e.cfg.BufferRows) * unit
		return Buffer{Top: b, Bottom: b}
	}
	return e.cfg.Buffer
}

// clampTo bounds a scroll position by the scroll range of content sized
// by a.
func (e *Engine) clampTo(a Actual, scrollTop float64) float64 {
	if !a.TotalKnown {
		return max(scrollTop, 0)
	}
	maxTop := a.TotalHeight + e.cfg.Padding.Top + e.cfg.Padding.Bottom - e.height
	return math.Max(0, math.Min(scrollTop, maxTop))
}

type emission struct {
	window *Window
	actual *Actual
	view   *ViewState
}

// recomputeLocked refreshes actual, propose and view state and returns what
// changed.
func (e *Engine) recomputeLocked() emission {
	var out emission
	if !e.sized {
		return out
	}
	unit, unitWidth := e.unitLocked()
	if unit <= 0 {
		return out
	}
	cols := e.columns

	actual := Actual{}
	if e.hasData {
		actual = computeActual(e.total, e.offset, e.limit, unitWidth, unit, cols)
	}
	if actual != e.actual {
		e.actual = actual
		out.actual = &actual
	}

	totalHeight := -1.0
	if actual.TotalKnown {
		totalHeight = actual.TotalHeight
	}
	p := computePropose(e.scrollTop, e.height, totalHeight, e.cfg.Padding, e.bufferLocked(unit))
	p.ContentWidth = max(e.width-e.cfg.Padding.Left-e.cfg.Padding.Right, 0)
	p.ContentHeight = max(e.height-e.cfg.Padding.Top-e.cfg.Padding.Bottom, 0)
	e.propose = p

	w := quantize(p.OffsetTop, p.OffsetHeight, unit, cols)
	gate := e.cfg.MinUpdateDelta * cols
	if !e.emitted || abs(w.Offset-e.last.Offset) > gate || abs(w.Limit-e.last.Limit) > gate {
		e.last, e.emitted = w, true
		out.window = &w
	}

	v := e.viewStateLocked(unit)
	if v != e.view {
		e.view = v
		out.view = &v
	}
	return out
}

func (e *Engine) viewStateLocked(unit float64) ViewState {
	p := e.propose
	v := ViewState{ScrollTop: p.ScrollTop, ScrollHeight: p.ScrollHeight}
	if !e.hasData {
		return v
	}
	cols := e.columns
	firstRow := max(round((p.ScrollTop-e.cfg.Padding.Top)/unit), 0)
	lastRow := round((p.ScrollTop + p.ContentHeight + e.cfg.Padding.Bottom) / unit)
	v.ItemOffset = min(firstRow*cols, e.total)
	v.ItemLimit = max(min(lastRow*cols, e.total)-v.ItemOffset, 0)
	v.ItemTotal, v.TotalKnown = e.total, true
	return v
}

type geometry struct {
	sized     bool
	unit      float64
	columns   int
	scrollTop float64
}

func (e *Engine) snapshotLocked() geometry {
	unit, _ := e.unitLocked()
	return geometry{sized: e.sized, unit: unit, columns: e.columns, scrollTop: e.scrollTop}
}

// anchorLocked is called after a size or column change. When the unit or
// the column count changed, it moves the scroll position so that the item
// that started the first visible row keeps its offset from the top edge,
// and reports whether the host must be scrolled.
func (e *Engine) anchorLocked(old geometry) (target float64, moved bool) {
	unit, unitWidth := e.unitLocked()
	if !old.sized || old.unit <= 0 || unit <= 0 || (unit == old.unit && e.columns == old.columns) {
		return 0, false
	}
	top := e.cfg.Padding.Top
	firstRow := round((old.scrollTop - top) / old.unit)
	firstItem := max(firstRow, 0) * old.columns
	rowOffset := float64(firstRow)*old.unit - (old.scrollTop - top)

	// clamp against the content as sized for the new unit
	actual := Actual{}
	if e.hasData {
		actual = computeActual(e.total, e.offset, e.limit, unitWidth, unit, e.columns)
	}
	target = e.clampTo(actual, float64(firstItem/e.columns)*unit-rowOffset+top)
	if target == e.scrollTop {
		return 0, false
	}
	e.log.Debug("anchoring first row", "item", firstItem, "scroll_top", target)
	e.scrollTop = target
	if e.cfg.Scroller != nil {
		e.navigating = true
	}
	return target, true
}

// resized finishes Resize and SetColumns: recompute, then scroll the host
// if anchoring moved the position.
func (e *Engine) resized(old geometry) {
	target, moved := e.anchorLocked(old)
	out := e.recomputeLocked()
	e.mu.Unlock()

	if moved && e.cfg.Scroller != nil {
		e.cfg.Scroller.ScrollTo(target)
		e.mu.Lock()
		e.navigating = false
		e.mu.Unlock()
	}
	e.flush(out)
}

func (e *Engine) flush(out emission) {
	if out.actual != nil {
		e.layouts.Emit(*out.actual)
	}
	if out.window != nil {
		e.log.Debug("window", "offset", out.window.Offset, "limit", out.window.Limit)
		e.windows.Emit(*out.window)
	}
	if out.view != nil {
		e.views.Emit(*out.view)
	}
}
