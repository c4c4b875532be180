// Package markup wraps highlighted fragments into documentation blocks: outer
// box with optional caption and link followed by highlighted body.
package markup

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/beevik/etree"
	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"codefrag/config"
	"codefrag/fragment"
)

// Values is a struct that holds variables we make available for template
// expansion.
type Values struct {
	Kind  string
	Descr string
	Name  string
	Part  int
	Lang  string
}

func ValuesFor(ref *fragment.Ref) Values {
	return Values{
		Kind:  ref.Kind.String(),
		Descr: ref.Kind.DisplayName(),
		Name:  ref.Name,
		Part:  ref.Part,
		Lang:  ref.Kind.HighlightLanguage(),
	}
}

// ParseTemplate prepares configuration template field for expansion.
func ParseTemplate(name config.TemplateFieldName, field string) (*template.Template, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Option("missingkey=error").Parse(field)
	if err != nil {
		return nil, fmt.Errorf("unable to parse template field %s: %w", name, err)
	}
	return tmpl, nil
}

// Expand executes template against fragment values.
func Expand(tmpl *template.Template, ref *fragment.Ref) (string, error) {
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, ValuesFor(ref)); err != nil {
		return "", fmt.Errorf("unable to expand template field %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ID returns element id for the fragment, stable for the same name and part.
func ID(ref *fragment.Ref) string {
	if ref.Part == 0 {
		return slug.Make(ref.Name)
	}
	return slug.Make(ref.Name + "-part-" + strconv.Itoa(ref.Part))
}

// Renderer produces final documentation blocks.
type Renderer struct {
	class   string
	caption *template.Template
	link    *template.Template
}

func New(cfg *config.MarkupConfig) (*Renderer, error) {
	if len(cfg.Class) == 0 {
		return nil, errors.New("block class is not specified")
	}
	r := &Renderer{class: cfg.Class}

	var err error
	if r.caption, err = ParseTemplate(config.CaptionTemplateFieldName, cfg.CaptionTemplate); err != nil {
		return nil, err
	}
	if len(cfg.LinkTemplate) > 0 {
		if r.link, err = ParseTemplate(config.LinkTemplateFieldName, cfg.LinkTemplate); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Render builds XHTML block for the fragment. Every element of highlighted
// must be well formed markup, it is embedded into block body in order. When
// nothing was highlighted source text is embedded as is.
func (r *Renderer) Render(ref *fragment.Ref, source string, highlighted []string) (string, error) {
	doc := etree.NewDocument()
	box := doc.CreateElement("div")
	box.CreateAttr("class", r.class)
	box.CreateAttr("id", ID(ref))
	box.CreateAttr("data-kind", ref.Kind.String())

	if ref.ShowHeader {
		if err := r.addCaption(box, ref); err != nil {
			return "", err
		}
	}

	body := box.CreateElement("div")
	body.CreateAttr("class", r.class+"-body")

	if len(highlighted) == 0 {
		body.CreateElement("pre").CreateElement("code").SetText(source)
	}
	for i, h := range highlighted {
		if err := embed(body, h); err != nil {
			return "", fmt.Errorf("unable to embed highlighted block %d of %s: %w", i, ref.Name, err)
		}
	}

	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("unable to serialize block for %s: %w", ref.Name, err)
	}
	return out, nil
}

func (r *Renderer) addCaption(box *etree.Element, ref *fragment.Ref) error {
	text, err := Expand(r.caption, ref)
	if err != nil {
		return err
	}
	caption := box.CreateElement("div")
	caption.CreateAttr("class", r.class+"-caption")

	if r.link == nil {
		caption.SetText(text)
		return nil
	}
	href, err := Expand(r.link, ref)
	if err != nil {
		return err
	}
	a := caption.CreateElement("a")
	a.CreateAttr("href", href)
	a.SetText(text)
	return nil
}

// embed parses markup fragment and moves all its top level tokens under
// parent.
func embed(parent *etree.Element, markup string) error {
	frag := etree.NewDocument()
	if err := frag.ReadFromString("<fragment>" + markup + "</fragment>"); err != nil {
		return err
	}
	root := frag.Root()
	if root == nil {
		return errors.New("empty markup")
	}
	children := append([]etree.Token(nil), root.Child...)
	for _, c := range children {
		parent.AddChild(c)
	}
	return nil
}
