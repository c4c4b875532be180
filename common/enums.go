// Package common keeps enums shared between configuration and processing
// code so neither has to import the other.
package common

//go:generate go tool go-enum --marshal --names --values

// Syntax highlighting engine.
// ENUM(chroma, pygmentize, none)
type HighlightEngine int

// External reports whether engine runs as a separate process.
func (e HighlightEngine) External() bool {
	return e == HighlightEnginePygmentize
}
