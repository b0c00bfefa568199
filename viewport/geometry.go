// Package viewport converts scroll and resize observations of a scrollable
// container into the index window that should be fetched and rendered, and
// converts the window actually held back into pixel geometry so that the
// scrollbar reflects the full, mostly unmaterialized, list.
//
// Rows and grids share one model: a row list is a grid of one column whose
// unit height is Config.RowHeight.
package viewport

import "math"

// Padding is the space between the scroll container and its content.
type Padding struct {
	Top, Bottom, Left, Right float64
}

// Buffer is the preload margin, in pixels, rendered beyond each edge of the
// visible area.
type Buffer struct {
	Top, Bottom float64
}

// Propose is derived from the live viewport only.
type Propose struct {
	ScrollTop     float64
	ScrollHeight  float64
	ContentWidth  float64
	ContentHeight float64
	OffsetTop     float64 // first pixel of content to materialize
	OffsetHeight  float64 // pixels of content to materialize
}

// Actual is derived from the data the consumer currently holds.
type Actual struct {
	TotalHeight float64
	TotalKnown  bool
	Top         float64 // space above the rendered window
	Height      float64 // height of the rendered window
	FillerWidth float64 // leading filler cell of a grid's first row
}

// Bottom returns the space below the rendered window.
func (a Actual) Bottom() float64 {
	return max(a.TotalHeight-a.Top-a.Height, 0)
}

// Window is a requested index range [Offset, Offset+Limit).
type Window struct {
	Offset, Limit int
}

// ViewState is the navigation read-out of the viewport: the first item whose
// midline is visible and how many items follow it up to the last such item.
type ViewState struct {
	ScrollTop    float64
	ScrollHeight float64
	ItemOffset   int
	ItemLimit    int
	ItemTotal    int
	TotalKnown   bool
}

// computePropose applies the viewport formulas. totalHeight < 0 means the
// content height is unknown and the usable height is assumed instead.
func computePropose(scrollTop, clientHeight, totalHeight float64, pad Padding, buf Buffer) Propose {
	usable := clientHeight + buf.Top + buf.Bottom
	if totalHeight < 0 {
		totalHeight = usable
	}
	sumTop := pad.Top + buf.Top
	sumBottom := pad.Bottom + buf.Bottom

	offsetTop := 0.0
	if scrollTop > sumTop {
		offsetTop = scrollTop - sumTop
	}
	scrollBottom := totalHeight - scrollTop - usable + sumTop + sumBottom
	offsetBottom := 0.0
	if scrollBottom > sumBottom {
		offsetBottom = scrollBottom - sumBottom
	}
	return Propose{
		ScrollTop:    scrollTop,
		ScrollHeight: totalHeight - clientHeight + pad.Top,
		OffsetTop:    offsetTop,
		OffsetHeight: totalHeight - offsetTop - offsetBottom,
	}
}

// quantize maps a pixel window to whole rows of cols items each.
func quantize(offsetTop, offsetHeight, unit float64, cols int) Window {
	first := int(math.Floor(offsetTop / unit))
	end := int(math.Ceil((offsetTop + offsetHeight) / unit))
	return Window{Offset: first * cols, Limit: max(end-first, 0) * cols}
}

// computeActual sizes the content for the held window.
func computeActual(total, offset, limit int, unitWidth, unit float64, cols int) Actual {
	filler := offset % cols
	return Actual{
		TotalHeight: ceilDiv(total, cols) * unit,
		TotalKnown:  true,
		Top:         float64((offset-filler)/cols) * unit,
		Height:      ceilDiv(limit+filler, cols) * unit,
		FillerWidth: float64(filler) * unitWidth,
	}
}

func ceilDiv(n, d int) float64 { return math.Ceil(float64(n) / float64(d)) }

// round rounds half up, the way a midline test does.
func round(x float64) int { return int(math.Floor(x + 0.5)) }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
