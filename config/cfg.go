package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"codefrag/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	HighlighterConfig struct {
		Engine common.HighlightEngine `yaml:"engine"`
		// Chroma style name, ignored by other engines
		Style string `yaml:"style"`
		// path or name of pygmentize executable
		Pygmentize      string        `yaml:"pygmentize" validate:"required_if=Engine 1"`
		Timeout         time.Duration `yaml:"timeout"`
		CacheExpiration time.Duration `yaml:"cache_expiration"`
	}

	MarkupConfig struct {
		Class           string `yaml:"class" validate:"required"`
		CaptionTemplate string `yaml:"caption_template" validate:"required"`
		LinkTemplate    string `yaml:"link_template"`
	}

	FragmentsConfig struct {
		Highlighter        HighlighterConfig `yaml:"highlighter"`
		Markup             MarkupConfig      `yaml:"markup"`
		OutputNameTemplate string            `yaml:"output_name_template"`
		FailFast           bool              `yaml:"fail_fast"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Fragments FragmentsConfig `yaml:"fragments"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	CaptionTemplateFieldName    TemplateFieldName = "caption_template"
	LinkTemplateFieldName       TemplateFieldName = "link_template"
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

// unnamedFragment is used as output file name when nothing usable is left of
// the fragment id.
const unnamedFragment = "_fragment_"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(CaptionTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(LinkTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields we defined are allowed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
