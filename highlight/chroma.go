package highlight

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"go.uber.org/zap"

	"codefrag/css"
)

// Chroma highlights in process. Output uses CSS classes, so the style only
// matters for the class prefixes and book stylesheet is responsible for
// colors.
type Chroma struct {
	style     *chroma.Style
	formatter *html.Formatter
}

func NewChroma(style string) *Chroma {
	return &Chroma{
		// unknown names resolve to styles.Fallback
		style:     styles.Get(style),
		formatter: html.New(html.WithClasses(true)),
	}
}

func (c *Chroma) Highlight(ctx context.Context, lang, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(lang) == 0 {
		return Plain{}.Highlight(ctx, lang, src)
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, src)
	if err != nil {
		return "", fmt.Errorf("unable to tokenize %s source: %w", lang, err)
	}

	var b strings.Builder
	if err := c.formatter.Format(&b, c.style, it); err != nil {
		return "", fmt.Errorf("unable to format %s source: %w", lang, err)
	}
	return b.String(), nil
}

// Stylesheet returns CSS for classes Chroma emits with every rule limited to
// elements inside blocks marked with class.
func (c *Chroma) Stylesheet(class string, log *zap.Logger) ([]byte, error) {
	var b bytes.Buffer
	if err := c.formatter.WriteCSS(&b, c.style); err != nil {
		return nil, fmt.Errorf("unable to produce css for style %s: %w", c.style.Name, err)
	}
	sheet := css.NewParser(log).Parse(b.Bytes())
	for _, w := range sheet.Warnings {
		log.Warn("Style sheet was not fully understood", zap.String("style", c.style.Name), zap.String("problem", w))
	}
	sheet.Scope(class)
	return []byte(sheet.String()), nil
}
