package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound indicates the manifest path does not exist.
var ErrNotFound = errors.New("manifest file not found")

// FormatError indicates a malformed manifest header or row. The whole load
// fails on the first malformed row; skipping rows silently would corrupt the
// final accounting.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed manifest (line %d): %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed manifest: %s", e.Reason)
}

// requiredColumns must all be present in the header row. Extra columns are
// ignored.
var requiredColumns = []string{"id", "filename", "md5", "size"}

// Record is one validated manifest row. Immutable once loaded.
type Record struct {
	ID       string `validate:"required"`
	Filename string `validate:"required"`
	MD5      string `validate:"required,hexadecimal"`
	Size     int64  `validate:"gte=0"`
}

var validate = validator.New()

// Load parses a tab-separated manifest file into typed records.
// The header row is required and must contain the id, filename, md5 and size
// columns in any order.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("could not open manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Manifest rows can carry long filenames; bump the default line limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("could not read manifest: %w", err)
		}
		return nil, &FormatError{Reason: "empty file, header row required"}
	}

	columns, err := parseHeader(scanner.Text())
	if err != nil {
		return nil, err
	}

	var records []Record
	line := 1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := parseRow(text, columns, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read manifest: %w", err)
	}

	return records, nil
}

// parseHeader maps column names to their field index.
func parseHeader(header string) (map[string]int, error) {
	fields := strings.Split(strings.TrimRight(header, "\r"), "\t")

	columns := make(map[string]int, len(fields))
	for i, name := range fields {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, &FormatError{Reason: fmt.Sprintf("missing required column %q", required)}
		}
	}

	return columns, nil
}

func parseRow(text string, columns map[string]int, line int) (Record, error) {
	fields := strings.Split(strings.TrimRight(text, "\r"), "\t")

	get := func(name string) string {
		idx := columns[name]
		if idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	sizeText := get("size")
	size, err := strconv.ParseInt(sizeText, 10, 64)
	if err != nil {
		return Record{}, &FormatError{Line: line, Reason: fmt.Sprintf("size %q is not a non-negative integer", sizeText)}
	}

	rec := Record{
		ID:       get("id"),
		Filename: get("filename"),
		MD5:      get("md5"),
		Size:     size,
	}

	if err := validate.Struct(rec); err != nil {
		return Record{}, &FormatError{Line: line, Reason: err.Error()}
	}

	return rec, nil
}
