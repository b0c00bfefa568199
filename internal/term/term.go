// Package term draws virtual list frames on a tcell screen.
package term

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
)

// Cell is one rendered item. Loaded is false for placeholders whose data
// has not arrived yet.
type Cell struct {
	Index  int
	Text   string
	Loaded bool
}

// Frame is everything drawn in one pass: a header line, the visible body
// cells in row-major order and a status line.
type Frame struct {
	Title   string
	Status  string
	Columns int
	// FirstRow is the body row (absolute, in units of rows) drawn at the top.
	FirstRow int
	// Cursor is the highlighted item index, or -1.
	Cursor int
	Cells  []Cell
}

// Styles used by Renderer.
type Styles struct {
	Header      tcell.Style
	Item        tcell.Style
	Placeholder tcell.Style
	Cursor      tcell.Style
	Status      tcell.Style
}

// DefaultStyles returns the styles used when none are given.
func DefaultStyles() Styles {
	return Styles{
		Header:      tcell.StyleDefault.Bold(true).Reverse(true),
		Item:        tcell.StyleDefault,
		Placeholder: tcell.StyleDefault.Dim(true),
		Cursor:      tcell.StyleDefault.Reverse(true),
		Status:      tcell.StyleDefault.Reverse(true),
	}
}

// Renderer draws frames. It is not safe for concurrent use; drive it from
// the goroutine that owns the screen.
type Renderer struct {
	screen tcell.Screen
	styles Styles
}

// New returns a Renderer for screen.
func New(screen tcell.Screen, styles Styles) *Renderer {
	return &Renderer{screen: screen, styles: styles}
}

// BodyHeight returns the number of body rows available on the screen.
func (r *Renderer) BodyHeight() int {
	_, h := r.screen.Size()
	return max(h-2, 0)
}

// Draw clears the screen, draws f and shows it.
func (r *Renderer) Draw(f Frame) {
	w, h := r.screen.Size()
	r.screen.Clear()
	if w <= 0 || h <= 0 {
		r.screen.Show()
		return
	}

	line(r.screen, 0, w, f.Title, r.styles.Header)
	if h > 1 {
		line(r.screen, h-1, w, f.Status, r.styles.Status)
	}

	cols := max(f.Columns, 1)
	cellWidth := w / cols
	body := r.BodyHeight()
	for _, c := range f.Cells {
		row := c.Index/cols - f.FirstRow
		if row < 0 || row >= body || cellWidth <= 0 {
			continue
		}
		x := (c.Index % cols) * cellWidth
		style := r.styles.Item
		text := c.Text
		if !c.Loaded {
			style = r.styles.Placeholder
			text = "…"
		}
		if c.Index == f.Cursor {
			style = r.styles.Cursor
		}
		put(r.screen, x, row+1, cellWidth, Truncate(text, cellWidth-1), style)
	}
	r.screen.Show()
}

// line fills row y with s padded to width w.
func line(screen tcell.Screen, y, w int, s string, style tcell.Style) {
	s = Truncate(s, w)
	put(screen, 0, y, w, s+strings.Repeat(" ", max(w-uniseg.StringWidth(s), 0)), style)
}

// put writes s from x, one grapheme cluster per cell run, clipped to width.
func put(screen tcell.Screen, x, y, width int, s string, style tcell.Style) {
	end := x + width
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		runes := gr.Runes()
		cw := max(uniseg.StringWidth(gr.Str()), 1)
		if x+cw > end {
			return
		}
		screen.SetContent(x, y, runes[0], runes[1:], style)
		x += cw
	}
}

// Truncate shortens s to at most width terminal cells, ending with an
// ellipsis when anything was cut. Wide and combined characters are kept whole.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}
	var b strings.Builder
	used := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		cw := uniseg.StringWidth(gr.Str())
		if used+cw > width-1 {
			break
		}
		b.WriteString(gr.Str())
		used += cw
	}
	b.WriteString("…")
	return b.String()
}
