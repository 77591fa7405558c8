package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// nullTokens are cell values treated as missing, beyond the empty string.
var nullTokens = map[string]struct{}{
	"": {}, "nan": {}, "NaN": {}, "null": {}, "None": {}, "NA": {},
}

var (
	nonAlnumRe   = regexp.MustCompile(`[^a-zA-Z0-9_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Load reads an uploaded file into a normalized Table. The format is chosen
// by filename extension: .csv, .xlsx, .xls and .json are supported.
func Load(filename string, r io.Reader) (*Table, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	var cols []string
	var rows [][]any

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cols, rows, err = loadCSV(content)
	case ".xlsx", ".xls":
		cols, rows, err = loadExcel(content)
	case ".json":
		cols, rows, err = loadJSON(content)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filename)
	}
	if err != nil {
		return nil, err
	}

	table := normalize(cols, rows)
	if len(table.Columns) == 0 || len(table.Rows) == 0 {
		return nil, fmt.Errorf("no data could be loaded from %s", filename)
	}
	return table, nil
}

// loadCSV tries the common delimiters in order and keeps the first parse
// that yields more than one column, falling back to the first that parsed
// at all.
func loadCSV(content []byte) ([]string, [][]any, error) {
	var fallbackCols []string
	var fallbackRows [][]any

	for _, delim := range []rune{',', ';', '\t'} {
		reader := csv.NewReader(bytes.NewReader(content))
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		records, err := reader.ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		cols := records[0]
		rows := make([][]any, 0, len(records)-1)
		for _, rec := range records[1:] {
			row := make([]any, len(cols))
			for i := range cols {
				if i < len(rec) {
					row[i] = rec[i]
				}
			}
			rows = append(rows, row)
		}

		if len(cols) > 1 {
			return cols, rows, nil
		}
		if fallbackCols == nil {
			fallbackCols, fallbackRows = cols, rows
		}
	}

	if fallbackCols == nil {
		return nil, nil, fmt.Errorf("could not parse CSV content")
	}
	return fallbackCols, fallbackRows, nil
}

func loadExcel(content []byte) ([]string, [][]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(records) < 1 {
		return nil, nil, fmt.Errorf("workbook sheet %s is empty", sheet)
	}

	cols := records[0]
	rows := make([][]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]any, len(cols))
		for i := range cols {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

// loadJSON accepts a top-level array of flat objects. Column order is the
// sorted union of keys, since JSON objects carry none.
func loadJSON(content []byte) ([]string, [][]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, nil, fmt.Errorf("parse JSON: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("JSON array is empty")
	}

	keySet := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			keySet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(keySet))
	for k := range keySet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(cols))
		for i, col := range cols {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

// normalize cleans column names, drops all-empty rows, coerces
// mostly-numeric columns to float64 and fills remaining nulls.
func normalize(cols []string, rows [][]any) *Table {
	cleaned := make([]string, len(cols))
	for i, col := range cols {
		cleaned[i] = CleanColumnName(col)
	}

	var kept [][]any
	for _, row := range rows {
		empty := true
		for i := range row {
			row[i] = nullify(row[i])
			if row[i] != nil {
				empty = false
			}
		}
		if !empty {
			kept = append(kept, row)
		}
	}

	for i := range cleaned {
		coerceColumn(kept, i)
	}

	return &Table{Columns: cleaned, Rows: kept}
}

// CleanColumnName lowercases, strips punctuation and collapses whitespace
// into underscores.
func CleanColumnName(col string) string {
	col = strings.ToLower(strings.TrimSpace(col))
	col = nonAlnumRe.ReplaceAllString(col, "")
	col = whitespaceRe.ReplaceAllString(col, "_")
	return col
}

func nullify(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if _, null := nullTokens[strings.TrimSpace(s)]; null {
		return nil
	}
	return v
}

// coerceColumn converts a column to float64 when more than half of its
// non-null values parse as numbers, then fills nulls (0 for numeric, "N/A"
// for text).
func coerceColumn(rows [][]any, idx int) {
	nonNull, parseable := 0, 0
	for _, row := range rows {
		v := row[idx]
		if v == nil {
			continue
		}
		nonNull++
		if _, ok := toFloat(v); ok {
			parseable++
		}
	}

	numeric := nonNull > 0 && float64(parseable) > float64(nonNull)*0.5
	for _, row := range rows {
		v := row[idx]
		if numeric {
			if f, ok := toFloat(v); ok {
				row[idx] = f
			} else {
				row[idx] = float64(0)
			}
			continue
		}
		if v == nil {
			row[idx] = "N/A"
		} else if _, isStr := v.(string); !isStr {
			row[idx] = fmt.Sprint(v)
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case bool:
		return 0, false
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(val, ",", ".")), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
