// Package archive gives read access to source trees packed into zip archives.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding"
)

// MaxEntrySize limits amount of data read from a single archive entry.
const MaxEntrySize = 64 << 20

// WalkFunc is called for every regular file under requested prefix. The name
// argument is entry path relative to the prefix with file name decoded when
// code page was requested. If an error is returned, processing stops.
type WalkFunc func(name string, file *zip.File) error

// Walk visits all regular files in the archive located under prefix. Any entry
// with path traversal components ("..") or absolute path makes the whole
// archive unusable.
func Walk(ctx context.Context, archive, prefix string, cp encoding.Encoding, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	prefix = strings.Trim(prefix, "/")

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if cp != nil && f.FileHeader.NonUTF8 {
			decoded, err := cp.NewDecoder().String(name)
			if err != nil {
				return fmt.Errorf("zip entry %q: unable to decode name: %w", name, err)
			}
			name = decoded
		}
		rel, ok := under(name, prefix)
		if !ok {
			continue
		}
		if err := walkFn(rel, f); err != nil {
			return err
		}
	}
	return nil
}

// ReadAll loads every file under prefix into memory keyed by its relative
// path.
func ReadAll(ctx context.Context, archive, prefix string, cp encoding.Encoding) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := Walk(ctx, archive, prefix, cp, func(name string, f *zip.File) error {
		data, err := readEntry(f)
		if err != nil {
			return fmt.Errorf("zip entry %q: %w", f.FileHeader.Name, err)
		}
		files[name] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, fmt.Errorf("entry is too big (%d bytes)", f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxEntrySize {
		return nil, fmt.Errorf("entry is too big (more than %d bytes)", MaxEntrySize)
	}
	return data, nil
}

// under reports whether name is located inside directory prefix and returns
// its path relative to it.
func under(name, prefix string) (string, bool) {
	if len(prefix) == 0 {
		return name, true
	}
	rel, ok := strings.CutPrefix(name, prefix+"/")
	if !ok || len(rel) == 0 {
		return "", false
	}
	return rel, true
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
