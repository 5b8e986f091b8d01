package pipeline

// csv.go turns CSV input into payload objects.
//
// The messy-input handling mirrors what the importer always did for
// user-supplied spreadsheets: BOM stripping, invalid UTF-8 repair and Excel
// formula prefixes (="value"). Cells are typed so that numbers stay numbers
// downstream and empty cells become null.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/stagepipe/internal/payload"
)

// numericRegex validates that a string is a plain decimal or scientific number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses CSV data whose first row is the header and returns one
// object per data row, keyed by header name in column order. Every row must
// have as many fields as the header.
func ReadCSV(r io.Reader) ([]payload.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(sanitizeUTF8(data), utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedInput, err)
	}
	keys := headerKeys(header)

	var records []payload.Value
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if isEmptyRow(row) {
			continue
		}

		obj := payload.NewObject()
		for i, cell := range row {
			obj.Set(keys[i], typeCell(cell))
		}
		records = append(records, payload.ObjectValue(obj))
	}
	return records, nil
}

// headerKeys cleans header names and makes them unique. Blank headers become
// unnamed_<n>; repeats get a .<n> suffix.
func headerKeys(header []string) []string {
	keys := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		key := cleanCell(h)
		if key == "" {
			key = "unnamed_" + strconv.Itoa(i)
		}
		if n, dup := seen[key]; dup {
			seen[key] = n + 1
			key = key + "." + strconv.Itoa(n+1)
		}
		seen[key] = 0
		keys[i] = key
	}
	return keys
}

// typeCell infers a value from a raw cell.
func typeCell(s string) payload.Value {
	s = cleanCell(s)
	if s == "" {
		return payload.Null()
	}
	if numericRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return payload.Number(f)
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return payload.Bool(true)
	case "false":
		return payload.Bool(false)
	}
	return payload.String(s)
}

// cleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
func cleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return s
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
