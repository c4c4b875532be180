// Package fragment locates labelled pieces of source code: it parses fragment
// descriptors, splits annotated sources into numbered parts and regroups
// interactive session transcripts into complete statements.
package fragment

import (
	"fmt"
	"slices"
)

// Kind is the closed set of fragment languages and transcript types.
type Kind int

const (
	KindOCaml Kind = iota
	KindOCamlTop
	KindOCamlRawTop
	KindConsole
	KindJSON
	KindATD
	KindScheme
	KindOCamlSyntax
	KindJava
	KindC
	KindShell
	KindCPP
	KindASCII
	KindGas
)

// Marker describes comment syntax used for part markers in a particular
// language. Close may be empty for line comments.
type Marker struct {
	Open  string
	Close string
}

var (
	markerML   = Marker{Open: "(*", Close: "*)"}
	markerC    = Marker{Open: "/*", Close: "*/"}
	markerHash = Marker{Open: "#"}
	markerLisp = Marker{Open: ";;"}
)

type kindInfo struct {
	token   string
	lang    string // empty when no highlighter applies
	descr   string
	marker  Marker
	session bool
}

var kinds = map[Kind]kindInfo{
	KindOCaml:       {token: "ocaml", lang: "ocaml", descr: "OCaml", marker: markerML},
	KindOCamlTop:    {token: "ocamltop", lang: "ocaml", descr: "OCaml Utop", marker: markerML, session: true},
	KindOCamlRawTop: {token: "ocamlrawtop", lang: "ocaml", descr: "OCaml Utop", marker: markerML},
	KindConsole:     {token: "console", lang: "console", descr: "Terminal", marker: markerHash},
	KindJSON:        {token: "json", lang: "json", descr: "JSON", marker: markerML},
	KindATD:         {token: "atd", lang: "ocaml", descr: "ATD", marker: markerML},
	KindScheme:      {token: "scheme", lang: "scheme", descr: "Scheme", marker: markerLisp},
	KindOCamlSyntax: {token: "ocamlsyntax", lang: "", descr: "Syntax", marker: markerML},
	KindJava:        {token: "java", lang: "java", descr: "Java", marker: markerC},
	KindC:           {token: "c", lang: "c", descr: "C", marker: markerC},
	KindShell:       {token: "sh", lang: "bash", descr: "Shell script", marker: markerHash},
	KindCPP:         {token: "cpp", lang: "c", descr: "C", marker: markerC},
	KindASCII:       {token: "ascii", lang: "", descr: "Diagram", marker: markerML},
	KindGas:         {token: "gas", lang: "gas", descr: "Assembly", marker: markerHash},
}

var kindByToken = func() map[string]Kind {
	m := make(map[string]Kind, len(kinds))
	for k, info := range kinds {
		m[info.token] = k
	}
	return m
}()

// ParseKind maps descriptor token to Kind. Matching is exact and case
// sensitive.
func ParseKind(token string) (Kind, error) {
	if k, ok := kindByToken[token]; ok {
		return k, nil
	}
	return 0, &UnknownKindError{Token: token}
}

// KindNames returns all recognized tokens in sorted order.
func KindNames() []string {
	names := make([]string, 0, len(kindByToken))
	for name := range kindByToken {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Kinds returns every member of the enumeration.
func Kinds() []Kind {
	all := make([]Kind, 0, len(kinds))
	for k := range kinds {
		all = append(all, k)
	}
	slices.Sort(all)
	return all
}

func (k Kind) info() kindInfo {
	info, ok := kinds[k]
	if !ok {
		// this should never happen
		panic(fmt.Sprintf("fragment kind %d is not registered", int(k)))
	}
	return info
}

// String returns descriptor token for the kind.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.token
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsValid reports whether k is a member of the enumeration.
func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// HighlightLanguage returns language identifier understood by the highlighter,
// empty string means no highlighting should be attempted.
func (k Kind) HighlightLanguage() string {
	return k.info().lang
}

// DisplayName returns short human readable label for captions.
func (k Kind) DisplayName() string {
	return k.info().descr
}

// Marker returns part marker comment syntax for the kind.
func (k Kind) Marker() Marker {
	return k.info().marker
}

// IsSession reports whether fragment text is an interactive transcript which
// has to be regrouped into statements before rendering.
func (k Kind) IsSession() bool {
	return k.info().session
}
