package fragment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Ref identifies a single fragment to be rendered.
type Ref struct {
	Kind       Kind
	Name       string
	Part       int
	ShowHeader bool
}

// String returns canonical descriptor text, defaults are omitted.
func (r *Ref) String() string {
	var b strings.Builder
	b.WriteString("((typ ")
	b.WriteString(r.Kind.String())
	b.WriteString(")(name ")
	b.WriteString(quoteAtom(r.Name))
	b.WriteByte(')')
	if r.Part != 0 {
		fmt.Fprintf(&b, "(part %d)", r.Part)
	}
	if !r.ShowHeader {
		b.WriteString("(header false)")
	}
	b.WriteByte(')')
	return b.String()
}

// ParseRef parses descriptor of the form
//
//	((typ ocaml)(name file.ml)(part 1)(header false))
//
// where part and header are optional and pairs may come in any order. Parsing
// failures are logged before being returned so batch processing keeps
// context. Returned errors are either *UnknownKindError or
// *MalformedDescriptorError.
func ParseRef(text string, log *zap.Logger) (*Ref, error) {
	if log == nil {
		log = zap.NewNop()
	}

	ref, err := parseRef(strings.TrimSpace(text))
	if err != nil {
		var uke *UnknownKindError
		if !errors.As(err, &uke) {
			err = &MalformedDescriptorError{Text: text, Err: err}
		}
		log.Error("Unable to parse fragment descriptor", zap.String("descriptor", text), zap.Error(err))
		return nil, err
	}
	return ref, nil
}

func parseRef(text string) (*Ref, error) {
	pairs, err := (&lexer{src: text}).pairs()
	if err != nil {
		return nil, err
	}

	ref := &Ref{ShowHeader: true}
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if seen[p.key] {
			return nil, fmt.Errorf("duplicate key %q", p.key)
		}
		seen[p.key] = true

		switch p.key {
		case "typ":
			if ref.Kind, err = ParseKind(p.value); err != nil {
				return nil, err
			}
		case "name":
			if len(p.value) == 0 {
				return nil, errors.New("empty name")
			}
			ref.Name = p.value
		case "part":
			n, err := strconv.Atoi(p.value)
			if err != nil {
				return nil, fmt.Errorf("bad part number: %w", err)
			}
			if n < 0 {
				return nil, fmt.Errorf("negative part number %d", n)
			}
			ref.Part = n
		case "header":
			switch p.value {
			case "true":
				ref.ShowHeader = true
			case "false":
				ref.ShowHeader = false
			default:
				return nil, fmt.Errorf("bad header flag %q, want true or false", p.value)
			}
		default:
			return nil, fmt.Errorf("unknown key %q", p.key)
		}
	}
	if !seen["typ"] {
		return nil, errors.New("missing required key \"typ\"")
	}
	if !seen["name"] {
		return nil, errors.New("missing required key \"name\"")
	}
	return ref, nil
}

type pair struct {
	key, value string
}

// lexer reads the small subset of s-expressions used by descriptors: a list of
// two atom lists. Atoms are either bare words or Go quoted strings.
type lexer struct {
	src string
	pos int
}

func (l *lexer) pairs() ([]pair, error) {
	if err := l.expect('('); err != nil {
		return nil, err
	}
	var res []pair
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, errors.New("unexpected end of input, missing ')'")
		}
		if l.src[l.pos] == ')' {
			l.pos++
			break
		}
		if err := l.expect('('); err != nil {
			return nil, err
		}
		key, err := l.atom()
		if err != nil {
			return nil, err
		}
		value, err := l.atom()
		if err != nil {
			return nil, err
		}
		if err := l.expect(')'); err != nil {
			return nil, err
		}
		res = append(res, pair{key: key, value: value})
	}
	l.skipSpace()
	if l.pos != len(l.src) {
		return nil, fmt.Errorf("unexpected trailing text at offset %d", l.pos)
	}
	return res, nil
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) expect(c byte) error {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return fmt.Errorf("unexpected end of input, expected %q", c)
	}
	if l.src[l.pos] != c {
		return fmt.Errorf("unexpected %q at offset %d, expected %q", l.src[l.pos], l.pos, c)
	}
	l.pos++
	return nil
}

func (l *lexer) atom() (string, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return "", errors.New("unexpected end of input, expected atom")
	}
	if l.src[l.pos] == '"' {
		quoted, err := strconv.QuotedPrefix(l.src[l.pos:])
		if err != nil {
			return "", fmt.Errorf("bad quoted atom at offset %d: %w", l.pos, err)
		}
		l.pos += len(quoted)
		return strconv.Unquote(quoted)
	}
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && !isDelimiter(l.src[l.pos]) {
		l.pos++
	}
	if start == l.pos {
		return "", fmt.Errorf("unexpected %q at offset %d, expected atom", l.src[l.pos], l.pos)
	}
	return l.src[start:l.pos], nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	return c == '(' || c == ')' || c == '"'
}

func quoteAtom(s string) string {
	if len(s) == 0 || strings.ContainsFunc(s, func(r rune) bool {
		return r < 0x80 && (isSpace(byte(r)) || isDelimiter(byte(r)))
	}) {
		return strconv.Quote(s)
	}
	return s
}
