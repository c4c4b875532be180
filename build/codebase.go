package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"codefrag/archive"
)

// Codebase is the tree of source files fragments are extracted from. It is
// either a directory on disk or a zip archive (optionally with path inside
// archive) loaded into memory.
type Codebase struct {
	root  string
	files map[string][]byte
	cp    encoding.Encoding
}

// OpenCodebase resolves src which may be a directory, an archive, or an
// archive followed by path inside it: "book.zip/code/examples".
func OpenCodebase(ctx context.Context, src string, cp encoding.Encoding, log *zap.Logger) (*Codebase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := filepath.Clean(src)
	var fi os.FileInfo
	for {
		var err error
		if fi, err = os.Stat(head); err == nil {
			break
		}
		parent := filepath.Dir(head)
		if parent == head {
			return nil, fmt.Errorf("code source was not found (%s)", src)
		}
		head = parent
	}
	tail := strings.TrimPrefix(strings.TrimPrefix(filepath.Clean(src), head), string(filepath.Separator))

	if fi.IsDir() {
		if len(tail) != 0 {
			return nil, fmt.Errorf("code source was not found (%s) => (%s)", head, tail)
		}
		log.Debug("Using code directory", zap.String("dir", head))
		return &Codebase{root: head, cp: cp}, nil
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("unexpected path mode for code source (%s)", head)
	}

	ok, err := isArchiveFile(head)
	if err != nil {
		return nil, fmt.Errorf("unable to check archive type: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("code source is neither directory nor zip archive (%s)", head)
	}
	files, err := archive.ReadAll(ctx, head, filepath.ToSlash(tail), cp)
	if err != nil {
		return nil, fmt.Errorf("unable to read code archive: %w", err)
	}
	if len(files) == 0 {
		log.Warn("Nothing found in code archive", zap.String("archive", head), zap.String("path", tail))
	}
	log.Debug("Using code archive", zap.String("archive", head), zap.String("path", tail), zap.Int("files", len(files)))
	return &Codebase{root: head, files: files, cp: cp}, nil
}

// Root returns directory or archive path the codebase was opened from.
func (c *Codebase) Root() string {
	return c.root
}

// Path returns on-disk location of the named file for directory codebases.
func (c *Codebase) Path(name string) (string, bool) {
	if c.files != nil {
		return "", false
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", false
	}
	return filepath.Join(c.root, filepath.FromSlash(clean)), true
}

// Raw returns file content exactly as stored.
func (c *Codebase) Raw(name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if c.files == nil {
		return os.ReadFile(filepath.Join(c.root, filepath.FromSlash(clean)))
	}
	data, ok := c.files[clean]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", clean, c.root, fs.ErrNotExist)
	}
	return data, nil
}

// Read returns text of the named file. Content which is not valid UTF-8 is
// decoded with requested code page if any.
func (c *Codebase) Read(name string) (string, error) {
	data, err := c.Raw(name)
	if err != nil {
		return "", err
	}
	if c.cp != nil && !utf8.Valid(data) {
		if data, err = c.cp.NewDecoder().Bytes(data); err != nil {
			return "", fmt.Errorf("unable to decode %s: %w", name, err)
		}
	}
	return string(data), nil
}

// cleanName normalizes fragment file name, which is always slash separated
// and relative to the codebase root.
func cleanName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if !fs.ValidPath(clean) || clean == "." {
		return "", fmt.Errorf("invalid source file name %q", name)
	}
	return clean, nil
}

func isArchiveFile(fname string) (bool, error) {
	f, err := os.Open(fname)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// filetype needs at most 262 bytes to match
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}
