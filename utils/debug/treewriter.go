// Package debug formats human readable dumps for the debug report.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates indented lines, two spaces per level.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) Bytes() []byte {
	return []byte(tw.w.String())
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes label with quoted single line value.
func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// Listing writes label followed by every line of text prefixed with its
// number, so leading and trailing whitespace stays visible.
func (tw TreeWriter) Listing(depth int, label, text string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	if len(text) == 0 {
		tw.w.WriteString(": <empty>\n")
		return
	}
	lines := strings.Split(text, "\n")
	fmt.Fprintf(tw.w, ": %d line(s)\n", len(lines))
	for i, l := range lines {
		tw.indent(depth + 1)
		fmt.Fprintf(tw.w, "%4d | %s\n", i+1, l)
	}
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
