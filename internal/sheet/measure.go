package sheet

import (
	"github.com/atotto/clipboard"
	"github.com/mattn/go-runewidth"
)

// pxPerCell approximates the pixel width of one terminal cell so the engine's
// pixel-denominated width bounds carry over to the TUI unchanged.
const pxPerCell = 8

// RuneMeasurer measures text by display cells, scaled to pixels.
type RuneMeasurer struct{}

func (RuneMeasurer) Width(s string) int {
	return runewidth.StringWidth(s) * pxPerCell
}

// CellsForWidth converts a pixel width back to terminal cells.
func CellsForWidth(px int) int {
	n := px / pxPerCell
	if n < 4 {
		n = 4
	}
	return n
}

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Write(text string) error { return clipboard.WriteAll(text) }
func (SystemClipboard) Read() (string, error)   { return clipboard.ReadAll() }
