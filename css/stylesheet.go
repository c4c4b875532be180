// Package css reads and rewrites highlighter stylesheets so they could be
// included into book styles without leaking outside of fragment blocks.
package css

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Declaration is a single "property: value" pair.
type Declaration struct {
	Property string
	Value    string
}

// Rule is a ruleset with grouped selectors.
type Rule struct {
	Selectors    []string
	Declarations []Declaration
}

// Stylesheet keeps plain rulesets in source order. At-rules are not
// supported and reported in Warnings.
type Stylesheet struct {
	Rules    []Rule
	Warnings []string
}

// Parser parses CSS stylesheets into structured rules.
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Parsing never fails, problems are
// collected as warnings.
func (p *Parser) Parse(data []byte) *Stylesheet {
	sheet := &Stylesheet{}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && err != io.EOF {
				sheet.Warnings = append(sheet.Warnings, err.Error())
				p.log.Debug("CSS parse error", zap.Error(err))
			}
			return sheet

		case css.BeginAtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "skipped at-rule block: "+string(data))
			skipBlock(parser)

		case css.AtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "skipped at-rule: "+string(data))

		case css.BeginRulesetGrammar:
			rule := Rule{Selectors: selectors(data, parser.Values())}
			rule.Declarations = declarations(parser)
			if len(rule.Selectors) > 0 {
				sheet.Rules = append(sheet.Rules, rule)
			}

		case css.QualifiedRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "skipped qualified rule without block: "+string(data))
		}
	}
}

func selectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var res []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			res = append(res, s)
		}
	}
	return res
}

func declarations(parser *css.Parser) []Declaration {
	var decls []Declaration
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return decls
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			var sb strings.Builder
			for _, t := range parser.Values() {
				if t.TokenType == css.WhitespaceToken {
					sb.WriteByte(' ')
					continue
				}
				sb.Write(t.Data)
			}
			decls = append(decls, Declaration{Property: string(data), Value: strings.TrimSpace(sb.String())})
		}
	}
}

func skipBlock(parser *css.Parser) {
	for depth := 1; depth > 0; {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// Scope makes every rule apply only inside elements with the class. Rules
// already selecting the class itself are rewritten to match compound
// selector.
func (s *Stylesheet) Scope(class string) {
	scope := "." + class
	for i := range s.Rules {
		for j, sel := range s.Rules[i].Selectors {
			if sel == scope || strings.HasPrefix(sel, scope+" ") {
				continue
			}
			s.Rules[i].Selectors[j] = scope + " " + sel
		}
	}
}

// WriteTo serializes stylesheet, one rule per line.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, r := range s.Rules {
		if len(r.Declarations) == 0 {
			continue
		}
		parts := make([]string, 0, len(r.Declarations))
		for _, d := range r.Declarations {
			parts = append(parts, d.Property+": "+d.Value)
		}
		n, err := fmt.Fprintf(w, "%s { %s; }\n", strings.Join(r.Selectors, ", "), strings.Join(parts, "; "))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Stylesheet) String() string {
	var sb strings.Builder
	_, _ = s.WriteTo(&sb)
	return sb.String()
}
