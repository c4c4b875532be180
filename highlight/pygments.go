package highlight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Pygments runs external pygmentize for every request.
type Pygments struct {
	Path    string
	Timeout time.Duration
	Log     *zap.Logger
}

func (p *Pygments) Highlight(ctx context.Context, lang, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(lang) == 0 {
		return Plain{}.Highlight(ctx, lang, src)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Path, "-l", lang, "-f", "html")
	cmd.Stdin = strings.NewReader(src)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if p.Log != nil {
		p.Log.Debug("Highlighter finished", zap.String("lang", lang), zap.Int("size", len(src)), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("highlighter interrupted: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		var ee *exec.ExitError
		if errors.As(err, &ee) && strings.Contains(msg, "no lexer") {
			return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
		}
		return "", fmt.Errorf("highlighter failed: %w (%s)", err, msg)
	}
	return stdout.String(), nil
}
