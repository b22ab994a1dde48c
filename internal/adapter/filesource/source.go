// Package filesource discovers and reads location export files from a
// directory.
package filesource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/couchcryptid/geo-timeline-etl/internal/parser"
	"golang.org/x/text/encoding/japanese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dir reads input files from a single directory, non-recursively.
// It implements pipeline.Source.
type Dir struct {
	path string
}

// New returns a source rooted at dir.
func New(dir string) *Dir {
	return &Dir{path: dir}
}

// Discover lists regular files with a supported extension in lexical order.
// A missing directory is an error.
func (d *Dir) Discover(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("list data dir %s: %w", d.path, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !slices.Contains(parser.SupportedExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		files = append(files, filepath.Join(d.path, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// Read loads one file. Timeline JSON is decoded to UTF-8; XML and archive
// content is returned as is apart from a leading byte order mark.
func (d *Dir) Read(ctx context.Context, path string) (domain.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return domain.SourceFile{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.SourceFile{}, fmt.Errorf("read %s: empty file: %w", path, domain.ErrMalformedInput)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		data, err = DecodeText(data)
		if err != nil {
			return domain.SourceFile{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".gpx", ".kml":
		data = bytes.TrimPrefix(data, utf8BOM)
	}

	return domain.SourceFile{
		Path:    path,
		Name:    filepath.Base(path),
		Ext:     ext,
		Content: data,
	}, nil
}

// DecodeText strips a UTF-8 byte order mark and converts Shift_JIS (CP932)
// content to UTF-8. Valid UTF-8 passes through unchanged.
func DecodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode shift_jis: %w: %v", domain.ErrMalformedInput, err)
	}
	return out, nil
}
