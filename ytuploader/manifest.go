package ytuploader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Manifest column names.
const (
	colVideoPath   = "video_path"
	colTitle       = "title"
	colDescription = "description"
)

// ManifestEntry - one upload candidate from the manifest.
type ManifestEntry struct {
	VideoPath   string
	Title       string
	Description string
}

// ManifestReadError is returned when the manifest cannot be opened or parsed.
type ManifestReadError struct {
	Path string
	Err  error
}

func (e *ManifestReadError) Error() string {
	return fmt.Sprintf("read manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestReadError) Unwrap() error { return e.Err }

// ReadManifest loads every entry of the CSV manifest at path, in file order.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ManifestReadError{Path: path, Err: err}
	}
	defer f.Close()

	entries, err := parseManifest(f)
	if err != nil {
		return nil, &ManifestReadError{Path: path, Err: err}
	}
	return entries, nil
}

// parseManifest reads a header row followed by one row per candidate. Columns
// are matched by name; extra columns are ignored and short rows read as empty.
func parseManifest(r io.Reader) ([]ManifestEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("manifest is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		idx[strings.ToLower(h)] = i
	}
	for _, col := range []string{colVideoPath, colTitle, colDescription} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	field := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []ManifestEntry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		e := ManifestEntry{
			VideoPath:   field(row, colVideoPath),
			Title:       field(row, colTitle),
			Description: field(row, colDescription),
		}
		if e.VideoPath == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
