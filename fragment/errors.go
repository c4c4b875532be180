package fragment

import (
	"fmt"
	"strconv"
)

// UnknownKindError is returned when descriptor names unrecognized fragment
// type.
type UnknownKindError struct {
	Token string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown fragment type %q", e.Token)
}

// MalformedDescriptorError is returned when descriptor text cannot be parsed
// into a fragment reference.
type MalformedDescriptorError struct {
	Text string
	Err  error
}

func (e *MalformedDescriptorError) Error() string {
	return fmt.Sprintf("malformed fragment descriptor %q: %v", e.Text, e.Err)
}

func (e *MalformedDescriptorError) Unwrap() error {
	return e.Err
}

// MissingPartError is returned when part number was never declared by a
// marker. Source holds whatever text was available for diagnostics: complete
// source for lookups, accumulated buffer while splitting.
type MissingPartError struct {
	Part   int
	Name   string
	Source string
}

func (e *MissingPartError) Error() string {
	return fmt.Sprintf("part %d of %q was not found (%d bytes of context)", e.Part, e.Name, len(e.Source))
}

// UnterminatedStatementError is returned when transcript ends inside a multi
// line statement. Phrase holds lines accumulated so far.
type UnterminatedStatementError struct {
	Phrase string
}

func (e *UnterminatedStatementError) Error() string {
	return "unterminated phrase in session transcript: " + strconv.Quote(e.Phrase)
}
