// Package highlight turns fragment text into highlighted markup. Engines are
// either built in (Chroma) or external processes (pygmentize); all of them
// produce an XHTML compatible fragment.
package highlight

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os/exec"

	"go.uber.org/zap"

	"codefrag/common"
	"codefrag/config"
)

// ErrUnknownLanguage is returned when engine has no lexer for requested
// language.
var ErrUnknownLanguage = errors.New("unknown highlighting language")

// Highlighter converts source text in the given language to markup.
type Highlighter interface {
	Highlight(ctx context.Context, lang, src string) (string, error)
}

// New creates highlighter for the configured engine, results are memoized.
func New(cfg *config.HighlighterConfig, log *zap.Logger) (Highlighter, error) {
	var h Highlighter
	switch cfg.Engine {
	case common.HighlightEngineChroma:
		h = NewChroma(cfg.Style)
	case common.HighlightEnginePygmentize:
		path, err := exec.LookPath(cfg.Pygmentize)
		if err != nil {
			return nil, fmt.Errorf("highlighter is not available: %w", err)
		}
		h = &Pygments{Path: path, Timeout: cfg.Timeout, Log: log.Named("pygmentize")}
	case common.HighlightEngineNone:
		h = Plain{}
	default:
		return nil, fmt.Errorf("unsupported highlighting engine %s", cfg.Engine)
	}
	log.Debug("Highlighter prepared", zap.Stringer("engine", cfg.Engine), zap.Duration("cache", cfg.CacheExpiration))
	return Cached(h, cfg.CacheExpiration), nil
}

// Plain does no highlighting at all, text is only escaped. Used for fragment
// kinds without language and when highlighting is turned off.
type Plain struct{}

func (Plain) Highlight(ctx context.Context, _, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "<pre><code>" + html.EscapeString(src) + "</code></pre>", nil
}
