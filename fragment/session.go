package fragment

import (
	"strings"
)

const (
	promptPrefix     = "#"
	phraseTerminator = ";;"
)

// sessionState is either outputState or phraseState.
type sessionState interface {
	isSessionState()
}

// outputState: not inside a multi-line statement, pending collects lines of
// the current top level block.
type outputState struct {
	completed []string
	pending   []string
}

// phraseState: inside statement started by a prompt line and not terminated
// yet.
type phraseState struct {
	completed []string
	acc       []string
}

func (outputState) isSessionState() {}
func (phraseState) isSessionState() {}

// step advances normalizer by one line. It never modifies slices of the
// incoming state in place.
func step(st sessionState, line string) sessionState {
	switch s := st.(type) {
	case phraseState:
		acc := append(s.acc[:len(s.acc):len(s.acc)], line)
		if strings.HasSuffix(line, phraseTerminator) {
			return outputState{completed: appendBlock(s.completed, acc)}
		}
		return phraseState{completed: s.completed, acc: acc}
	case outputState:
		if !strings.HasPrefix(line, promptPrefix) {
			return outputState{
				completed: s.completed,
				pending:   append(s.pending[:len(s.pending):len(s.pending)], line),
			}
		}
		completed := appendBlock(s.completed, s.pending)
		if strings.HasSuffix(line, phraseTerminator) {
			return outputState{completed: appendBlock(completed, []string{line})}
		}
		return phraseState{completed: completed, acc: []string{line}}
	default:
		// this should never happen
		panic("unexpected session state")
	}
}

func appendBlock(completed, lines []string) []string {
	return append(completed[:len(completed):len(completed)], strings.Join(lines, "\n"))
}

// NormalizeSession regroups interactive session lines into statement blocks.
// A line starting with '#' opens a new statement which lasts until a line
// ending with ";;". Lines outside of statements (tool output) are grouped
// with each other. Blocks which are empty after trimming are dropped.
func NormalizeSession(lines []string) ([]string, error) {
	var st sessionState = outputState{}
	for _, line := range lines {
		st = step(st, line)
	}

	var blocks []string
	switch s := st.(type) {
	case phraseState:
		return nil, &UnterminatedStatementError{Phrase: strings.Join(s.acc, "\n")}
	case outputState:
		blocks = appendBlock(s.completed, s.pending)
	}

	res := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if len(strings.TrimSpace(b)) == 0 {
			continue
		}
		res = append(res, b)
	}
	return res, nil
}

// NormalizeTranscript is NormalizeSession for transcript text.
func NormalizeTranscript(text string) ([]string, error) {
	return NormalizeSession(splitLines(text))
}
