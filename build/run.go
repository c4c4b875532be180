// Package build drives fragment processing for command line: resolves code
// sources, runs descriptors through extraction, highlighting and markup and
// writes results.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"codefrag/config"
	"codefrag/highlight"
	"codefrag/markup"
	"codefrag/state"
)

// Render processes every descriptor from fragment list and writes rendered
// blocks into destination directory.
func Render(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("render")

	list := cmd.Args().Get(0)
	if len(list) == 0 {
		return errors.New("no fragment list has been specified")
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")
	env.FailFast = cmd.Bool("fail-fast") || env.Cfg.Fragments.FailFast
	if err := setCodeSource(ctx, cmd, log); err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("list", list), zap.String("code", env.CodeRoot), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return render(ctx, list, dst, log)
}

// Extract processes single descriptor and writes result to standard output.
func Extract(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("extract")

	descriptor := cmd.Args().Get(0)
	if len(descriptor) == 0 {
		return errors.New("no fragment descriptor has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, descriptor must be quoted", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}
	if err := setCodeSource(ctx, cmd, log); err != nil {
		return err
	}

	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}
	return extract(ctx, descriptor, cmd.Bool("raw"), out, log)
}

// setCodeSource fills code location and code page in the environment from
// command flags.
func setCodeSource(ctx context.Context, cmd *cli.Command, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)

	code := cmd.String("code")
	if len(code) == 0 {
		if code, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if env.CodeRoot, err = filepath.Abs(code); err != nil {
		return err
	}

	// Book sources may predate UTF-8, allow forcing code page for file
	// content and names inside archives
	cp := cmd.String("source-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Decoding all non UTF-8 sources", zap.String("charset", n))
		}
	}
	return nil
}

// newPipeline builds processing pipeline from environment.
func newPipeline(ctx context.Context, log *zap.Logger) (*Pipeline, error) {
	env := state.EnvFromContext(ctx)

	code, err := OpenCodebase(ctx, env.CodeRoot, env.CodePage, log)
	if err != nil {
		return nil, err
	}
	hl, err := highlight.New(&env.Cfg.Fragments.Highlighter, log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare highlighter: %w", err)
	}
	rnd, err := markup.New(&env.Cfg.Fragments.Markup)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare markup: %w", err)
	}
	return NewPipeline(code, hl, rnd, env.Rpt, log), nil
}

func render(ctx context.Context, list, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	p, err := newPipeline(ctx, log)
	if err != nil {
		return err
	}

	var tmpl *template.Template
	if len(env.Cfg.Fragments.OutputNameTemplate) > 0 {
		if tmpl, err = markup.ParseTemplate(config.OutputNameTemplateFieldName, env.Cfg.Fragments.OutputNameTemplate); err != nil {
			return err
		}
	}

	f, err := os.Open(list)
	if err != nil {
		return fmt.Errorf("unable to open fragment list: %w", err)
	}
	defer f.Close()

	entries, err := readList(f)
	if err != nil {
		return err
	}
	env.Rpt.Store("list/"+filepath.Base(list), list)

	var (
		done   int
		failed []error
	)
	defer func() {
		log.Info("Fragments processed", zap.Int("total", len(entries)), zap.Int("written", done), zap.Int("failed", len(failed)))
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := renderOne(ctx, p, e, dst, tmpl, log)
		if err == nil {
			done++
			continue
		}
		log.Error("Unable to process fragment", zap.Int("line", e.line), zap.String("descriptor", e.text), zap.Error(err))
		err = fmt.Errorf("line %d: %w", e.line, err)
		if env.FailFast {
			return err
		}
		failed = append(failed, err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d fragment(s) failed: %w", len(failed), multierr.Combine(failed...))
	}
	return nil
}

func renderOne(ctx context.Context, p *Pipeline, e entry, dst string, tmpl *template.Template, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	res, err := p.Process(ctx, e.text)
	if err != nil {
		return err
	}

	fname := outputPath(res.Ref, dst, tmpl, log)
	if err := prepareOutput(fname, env.Overwrite, log); err != nil {
		return err
	}
	if err := os.WriteFile(fname, []byte(res.HTML+"\n"), 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	log.Debug("Fragment written", zap.Stringer("fragment", res.Ref), zap.String("to", fname))
	return nil
}

func extract(ctx context.Context, descriptor string, raw bool, out io.Writer, log *zap.Logger) error {
	p, err := newPipeline(ctx, log)
	if err != nil {
		return err
	}

	var text string
	if raw {
		res, err := p.Locate(ctx, descriptor)
		if err != nil {
			return err
		}
		text = res.Raw()
	} else {
		res, err := p.Process(ctx, descriptor)
		if err != nil {
			return err
		}
		text = res.HTML
	}
	if _, err := io.WriteString(out, text+"\n"); err != nil {
		return fmt.Errorf("unable to write fragment: %w", err)
	}
	return nil
}

// Stylesheet writes CSS for highlighted blocks to destination file or
// standard output.
func Stylesheet(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("stylesheet")

	data, err := highlight.NewChroma(env.Cfg.Fragments.Highlighter.Style).Stylesheet(env.Cfg.Fragments.Markup.Class, log)
	if err != nil {
		return err
	}

	fname := cmd.Args().Get(0)
	if len(fname) == 0 {
		out := cmd.Root().Writer
		if out == nil {
			out = os.Stdout
		}
		_, err = out.Write(data)
		return err
	}
	if err := prepareOutput(fname, true, log); err != nil {
		return err
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	log.Info("Stylesheet written", zap.String("style", env.Cfg.Fragments.Highlighter.Style), zap.String("file", fname))
	return nil
}
