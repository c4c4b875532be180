package build

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// entry is a single descriptor from fragment list.
type entry struct {
	line int
	text string
}

// readList reads fragment list: one descriptor per line, blank lines and
// lines starting with ';' are ignored.
func readList(r io.Reader) ([]entry, error) {
	var entries []entry

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		if n == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if len(text) == 0 || strings.HasPrefix(text, ";") {
			continue
		}
		entries = append(entries, entry{line: n, text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("unable to read fragment list: %w", err)
	}
	return entries, nil
}
