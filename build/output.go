package build

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"codefrag/config"
	"codefrag/fragment"
	"codefrag/markup"
)

const outputExt = ".html"

// outputPath returns location of rendered block under dst. Without template
// file name is derived from fragment name and part, otherwise expanded
// template may contain slash separated subdirectories.
func outputPath(ref *fragment.Ref, dst string, tmpl *template.Template, log *zap.Logger) string {
	defaultPath := filepath.Join(dst, config.CleanFileName(markup.ID(ref))+outputExt)
	if tmpl == nil {
		return defaultPath
	}

	expanded, err := markup.Expand(tmpl, ref)
	if err != nil {
		log.Warn("Unable to prepare output filename", zap.Stringer("fragment", ref), zap.Error(err))
		return defaultPath
	}
	segments := splitCleanPath(expanded)
	if len(segments) == 0 {
		// fallback to default name if template expansion produced nothing
		return defaultPath
	}

	last := len(segments) - 1
	if filepath.Ext(segments[last]) == "" {
		segments[last] += outputExt
	}
	return filepath.Join(append([]string{dst}, segments...)...)
}

// splitCleanPath breaks expanded name into sanitized path segments dropping
// anything which could point outside of destination.
func splitCleanPath(name string) []string {
	name = strings.ReplaceAll(name, `\`, "/")
	segments := make([]string, 0, 4)
	for _, s := range strings.Split(path.Clean("/"+name), "/") {
		s = strings.TrimSpace(s)
		if len(s) == 0 || s == "." || s == ".." {
			continue
		}
		segments = append(segments, config.CleanFileName(s))
	}
	return segments
}

// prepareOutput makes sure file could be written honoring overwrite policy.
func prepareOutput(fname string, overwrite bool, log *zap.Logger) error {
	_, err := os.Stat(fname)
	switch {
	case err == nil:
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", fname)
		}
		log.Warn("Overwriting existing file", zap.String("file", fname))
		return nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
			return fmt.Errorf("unable to create output directory: %w", err)
		}
		return nil
	default:
		return err
	}
}
