package build

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"codefrag/config"
	"codefrag/fragment"
	"codefrag/highlight"
	"codefrag/markup"
)

// Result is a located (and possibly rendered) fragment.
type Result struct {
	Ref *fragment.Ref
	// Text is requested part of the source file
	Text string
	// Blocks holds normalized statements for session kinds, nil otherwise
	Blocks []string
	HTML   string
}

// Raw returns fragment text without markup: normalized session statements
// separated by empty lines or part text as is.
func (r *Result) Raw() string {
	if r.Blocks == nil {
		return r.Text
	}
	return strings.Join(r.Blocks, "\n\n")
}

// Pipeline carries everything needed to turn descriptors into rendered
// blocks.
type Pipeline struct {
	code *Codebase
	hl   highlight.Highlighter
	rnd  *markup.Renderer
	rpt  *config.Report
	log  *zap.Logger
}

func NewPipeline(code *Codebase, hl highlight.Highlighter, rnd *markup.Renderer, rpt *config.Report, log *zap.Logger) *Pipeline {
	return &Pipeline{code: code, hl: hl, rnd: rnd, rpt: rpt, log: log}
}

// Locate parses descriptor and finds fragment text in the codebase.
func (p *Pipeline) Locate(ctx context.Context, descriptor string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := fragment.ParseRef(descriptor, p.log)
	if err != nil {
		return nil, err
	}

	source, err := p.code.Read(ref.Name)
	if err != nil {
		return nil, fmt.Errorf("unable to read source for %s: %w", ref, err)
	}
	if p.rpt != nil {
		defer func() { p.dump(ref, source) }()
	}

	res := &Result{Ref: ref}
	if res.Text, err = fragment.ExtractPart(ref.Name, source, ref.Part, ref.Kind.Marker()); err != nil {
		p.keepSource(ref.Name)
		return nil, err
	}
	if ref.Kind.IsSession() {
		if res.Blocks, err = fragment.NormalizeTranscript(res.Text); err != nil {
			p.keepSource(ref.Name)
			return nil, fmt.Errorf("unable to normalize %s: %w", ref, err)
		}
	}
	return res, nil
}

// Process locates fragment and renders it into documentation block.
func (p *Pipeline) Process(ctx context.Context, descriptor string) (*Result, error) {
	res, err := p.Locate(ctx, descriptor)
	if err != nil {
		return nil, err
	}

	blocks := res.Blocks
	if blocks == nil {
		blocks = []string{res.Text}
	}
	highlighted := make([]string, 0, len(blocks))
	for _, b := range blocks {
		h, err := p.highlight(ctx, res.Ref, b)
		if err != nil {
			return nil, err
		}
		highlighted = append(highlighted, h)
	}

	if res.HTML, err = p.rnd.Render(res.Ref, res.Text, highlighted); err != nil {
		return nil, fmt.Errorf("unable to render %s: %w", res.Ref, err)
	}
	return res, nil
}

func (p *Pipeline) highlight(ctx context.Context, ref *fragment.Ref, src string) (string, error) {
	lang := ref.Kind.HighlightLanguage()
	out, err := p.hl.Highlight(ctx, lang, src)
	if errors.Is(err, highlight.ErrUnknownLanguage) {
		p.log.Warn("Highlighter does not support language, using plain text", zap.String("lang", lang), zap.Stringer("fragment", ref))
		return highlight.Plain{}.Highlight(ctx, "", src)
	}
	if err != nil {
		return "", fmt.Errorf("unable to highlight %s: %w", ref, err)
	}
	return out, nil
}

// keepSource puts source file of failed fragment into debug report.
func (p *Pipeline) keepSource(name string) {
	if p.rpt == nil {
		return
	}
	if fname, ok := p.code.Path(name); ok {
		if err := p.rpt.StoreCopy("sources/"+name, fname); err != nil {
			p.log.Warn("Unable to store source in report", zap.String("file", fname), zap.Error(err))
		}
		return
	}
	if data, err := p.code.Raw(name); err == nil {
		p.rpt.StoreData("sources/"+name, data)
	}
}
