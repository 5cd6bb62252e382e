// Package render formats outbound game text: fixed-width word wrapping and
// themed ANSI coloring on top of the raw Telnet transport.
package render

import (
	"strings"
	"unicode"

	"github.com/etherwake/mud/internal/telnet"
)

// LineWidth is the column width all game text is wrapped to.
const LineWidth = 80

// Tab is the indent used for list items (player lists, exits, suggestions).
const Tab = "  "

// Theme colors for recurring kinds of game text.
const (
	ThemeLocation = telnet.Yellow
	ThemeNPCName  = telnet.BrightMagenta
	ThemeItemName = telnet.Green
)

// Console is the output half of a connection, as needed by the renderer.
// *telnet.Conn satisfies it.
type Console interface {
	Write(data []byte) error
	WriteLine(text string) error
}

// Wrap formats text to the given maximum width, counted in runes so a
// multibyte character is never split. Lines break at the last whitespace at
// or before the width boundary; a run with no whitespace in range is
// hard-cut exactly at the boundary. Line breaks are emitted as \r\n.
//
// Precondition: width must be > 0.
// Postcondition: No output line exceeds width printable characters.
func Wrap(text string, width int) string {
	runes := []rune(text)
	var b strings.Builder
	lineStart := 0

	for len(runes)-lineStart > 0 {
		lineEnd := lastSpaceInRange(runes, lineStart, lineStart+width) + 1

		if lineEnd == 0 || len(runes)-lineStart <= width {
			lineEnd = lineStart + width
			if lineEnd > len(runes) {
				lineEnd = len(runes)
			}
		}

		b.WriteString(string(runes[lineStart:lineEnd]))

		if len(runes)-lineStart > width {
			b.WriteString("\r\n")
		}

		lineStart = lineEnd
	}

	return b.String()
}

// lastSpaceInRange returns the index of the last whitespace rune in
// runes[start:end), or -1 if there is none.
func lastSpaceInRange(runes []rune, start, end int) int {
	if end > len(runes) {
		end = len(runes)
	}
	for i := end - 1; i >= start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// Text sends wrapped text to the console without a trailing newline.
func Text(c Console, text string) {
	_ = c.Write([]byte(Wrap(text, LineWidth)))
}

// TextColor sends wrapped text in the given foreground color, without a
// trailing newline.
func TextColor(c Console, text, color string) {
	_ = c.Write([]byte(color + Wrap(text, LineWidth) + telnet.Reset))
}

// Line sends wrapped text to the console followed by a newline.
func Line(c Console, text string) {
	_ = c.WriteLine(Wrap(text, LineWidth))
}

// LineColor sends a wrapped, colored line to the console.
func LineColor(c Console, text, color string) {
	_ = c.WriteLine(color + Wrap(text, LineWidth) + telnet.Reset)
}

// BlankLine sends an empty line.
func BlankLine(c Console) {
	_ = c.WriteLine("")
}
