package fragment

import (
	"regexp"
	"strconv"
	"strings"
)

// Parts holds result of splitting a single source: trimmed text for every
// declared part number. Part 0 is always present.
type Parts struct {
	text  map[int]string
	order []int
}

// Get returns text of the requested part.
func (p *Parts) Get(n int) (string, bool) {
	s, ok := p.text[n]
	return s, ok
}

// Numbers returns part numbers in the order they were first seen.
func (p *Parts) Numbers() []int {
	return append([]int(nil), p.order...)
}

// Len returns number of parts including part 0.
func (p *Parts) Len() int {
	return len(p.order)
}

// Map returns a copy of part number to text mapping.
func (p *Parts) Map() map[int]string {
	m := make(map[int]string, len(p.text))
	for k, v := range p.text {
		m[k] = v
	}
	return m
}

// markerPattern builds expression matching a whole left-trimmed marker line:
// "<open> part <number> <close>" with tokens separated by whitespace.
func markerPattern(m Marker) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`^`)
	b.WriteString(regexp.QuoteMeta(m.Open))
	b.WriteString(`\s+part\s+([0-9]+)`)
	if len(m.Close) > 0 {
		b.WriteString(`\s+`)
		b.WriteString(regexp.QuoteMeta(m.Close))
	}
	b.WriteString(`\s*$`)
	return regexp.MustCompile(b.String())
}

var markerPatterns = func() map[Marker]*regexp.Regexp {
	m := make(map[Marker]*regexp.Regexp)
	for _, info := range kinds {
		if _, ok := m[info.marker]; !ok {
			m[info.marker] = markerPattern(info.marker)
		}
	}
	return m
}()

func patternFor(m Marker) *regexp.Regexp {
	if re, ok := markerPatterns[m]; ok {
		return re
	}
	return markerPattern(m)
}

// parseMarker reports part number if line is a part marker.
func parseMarker(re *regexp.Regexp, line string) (int, bool) {
	sub := re.FindStringSubmatch(strings.TrimLeft(line, " \t"))
	if sub == nil {
		return 0, false
	}
	n, err := strconv.Atoi(sub[1])
	if err != nil {
		// number does not fit, treat line as content
		return 0, false
	}
	return n, true
}

// SplitParts partitions text into numbered parts delimited by marker comment
// lines. Marker lines themselves are dropped, content before the first marker
// belongs to part 0 and repeated markers resume appending to already existing
// part.
func SplitParts(name, text string, marker Marker) (*Parts, error) {
	re := patternFor(marker)

	buffers := map[int]*strings.Builder{0: {}}
	order := []int{0}
	current := 0

	for _, line := range splitLines(text) {
		if n, ok := parseMarker(re, line); ok {
			current = n
			if _, exists := buffers[n]; !exists {
				buffers[n] = &strings.Builder{}
				order = append(order, n)
			}
			continue
		}
		buf, ok := buffers[current]
		if !ok {
			var acc strings.Builder
			for _, n := range order {
				acc.WriteString(buffers[n].String())
			}
			return nil, &MissingPartError{Part: current, Name: name, Source: acc.String()}
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	parts := &Parts{text: make(map[int]string, len(buffers)), order: order}
	for n, buf := range buffers {
		parts.text[n] = strings.TrimSpace(buf.String())
	}
	return parts, nil
}

// ExtractPart returns single part of the source. Asking for a part which was
// never declared is an error, no default is ever substituted.
func ExtractPart(name, text string, part int, marker Marker) (string, error) {
	parts, err := SplitParts(name, text, marker)
	if err != nil {
		return "", err
	}
	s, ok := parts.Get(part)
	if !ok {
		return "", &MissingPartError{Part: part, Name: name, Source: text}
	}
	return s, nil
}

// splitLines breaks text into lines without terminators. Final newline does
// not produce an extra empty line.
func splitLines(text string) []string {
	if len(text) == 0 {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
