package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/klauspost/compress/zip"
)

const kmzDocEntry = "doc.kml"

var driveLetterRe = regexp.MustCompile(`^[A-Za-z]:`)

// KMZContent is the KML document chosen from a KMZ archive.
type KMZContent struct {
	Entry string
	KML   []byte
	// Rejected lists entry names refused as unsafe.
	Rejected []string
}

// ReadKMZ opens a KMZ archive held in memory and returns doc.kml, or the
// first .kml entry in archive order when doc.kml is absent. Entries whose
// names are absolute or contain ".." segments are skipped and reported in
// Rejected. maxEntryBytes bounds the uncompressed size of the chosen entry.
func ReadKMZ(data []byte, maxEntryBytes int64) (KMZContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return KMZContent{}, fmt.Errorf("open kmz: %w: %v", domain.ErrMalformedInput, err)
	}

	var out KMZContent
	var chosen, firstKML *zip.File
	for _, f := range zr.File {
		if err := safeEntryName(f.Name); err != nil {
			out.Rejected = append(out.Rejected, f.Name)
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(f.Name)
		if strings.EqualFold(name, kmzDocEntry) {
			chosen = f
		}
		if firstKML == nil && strings.EqualFold(path.Ext(name), ".kml") {
			firstKML = f
		}
	}
	if chosen == nil {
		chosen = firstKML
	}
	if chosen == nil {
		return out, fmt.Errorf("kmz has no kml entry: %w", domain.ErrMalformedInput)
	}

	out.Entry = chosen.Name
	out.KML, err = readEntry(chosen, maxEntryBytes)
	if err != nil {
		return out, err
	}
	return out, nil
}

func readEntry(f *zip.File, maxBytes int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open kmz entry %s: %w: %v", f.Name, domain.ErrMalformedInput, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read kmz entry %s: %w: %v", f.Name, domain.ErrMalformedInput, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("kmz entry %s exceeds %d bytes: %w", f.Name, maxBytes, domain.ErrSecurityViolation)
	}
	return data, nil
}

// safeEntryName rejects names that could resolve outside the archive root.
func safeEntryName(name string) error {
	n := strings.ReplaceAll(name, `\`, "/")
	switch {
	case n == "":
		return fmt.Errorf("kmz entry with empty name: %w", domain.ErrSecurityViolation)
	case strings.HasPrefix(n, "/"), driveLetterRe.MatchString(n):
		return fmt.Errorf("kmz entry %q is absolute: %w", name, domain.ErrSecurityViolation)
	}
	for _, seg := range strings.Split(n, "/") {
		if seg == ".." {
			return fmt.Errorf("kmz entry %q escapes archive root: %w", name, domain.ErrSecurityViolation)
		}
	}
	return nil
}

// ExtractKMZ reads the KML document from a KMZ archive and extracts it. Each
// rejected entry counts as a security_violation soft error.
func ExtractKMZ(data []byte, username string, maxEntryBytes int64) (ExtractResult, error) {
	kmz, err := ReadKMZ(data, maxEntryBytes)
	if err != nil {
		return ExtractResult{}, err
	}

	res, err := ExtractKML(kmz.KML, username)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("kmz entry %s: %w", kmz.Entry, err)
	}
	for _, name := range kmz.Rejected {
		res.warn(domain.KindSecurityViolation, fmt.Sprintf("rejected unsafe kmz entry %q", name))
	}
	return res, nil
}
