package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
)

// ErrUnsupportedFormat is returned when a file extension maps to no reader.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format represents supported tabular file formats
type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// DetectFormat detects the file format from the extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".json", ".jsonl":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Load reads a dataset file, dispatching on the extension. maxRows <= 0
// loads the whole file.
func Load(path string, maxRows int) (*Dataset, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatCSV:
		return readDelimited(file, ',', maxRows)
	case FormatTSV:
		return readDelimited(file, '\t', maxRows)
	case FormatJSON:
		return readJSON(file, maxRows)
	case FormatParquet:
		return readParquet(file, maxRows)
	}
	return nil, ErrUnsupportedFormat
}

// SavePath returns the path Save will actually write for a requested
// target. Parquet and unknown extensions rewrite to .csv; callers must
// advertise this path, not the requested one.
func SavePath(path string) string {
	format, err := DetectFormat(path)
	if err != nil || format == FormatParquet {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	}
	return path
}

// Save writes a dataset to SavePath(path); only CSV, TSV and JSON
// targets are produced.
func Save(ds *Dataset, path string) error {
	path = SavePath(path)
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatCSV:
		return writeDelimited(ds, file, ',')
	case FormatTSV:
		return writeDelimited(ds, file, '\t')
	case FormatJSON:
		return writeJSON(ds, file)
	}
	return ErrUnsupportedFormat
}

// SafeFilename strips path separators and shell-hostile characters from an
// uploaded filename.
func SafeFilename(original string) string {
	base := filepath.Base(original)
	var b strings.Builder
	for _, c := range base {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' || c == '_' || c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func readDelimited(r io.Reader, sep rune, maxRows int) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	ds := New(header)
	for maxRows <= 0 || len(ds.Rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ragged or quoted-broken lines are skipped, not fatal
			continue
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

func writeDelimited(ds *Dataset, w io.Writer, sep rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = sep

	if err := writer.Write(ds.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(ds.Columns))
	for _, row := range ds.Rows {
		for i, col := range ds.Columns {
			record[i] = row[col]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// readJSON accepts either a top-level array of objects or one object per
// line (NDJSON). Column order follows first appearance.
func readJSON(r io.Reader, maxRows int) (*Dataset, error) {
	decoder := json.NewDecoder(r)

	ds := New(nil)
	seen := make(map[string]struct{})

	appendObject := func(obj map[string]any) {
		row := make(Row, len(obj))
		for k, v := range obj {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				ds.Columns = append(ds.Columns, k)
			}
			row[k] = stringifyJSON(v)
		}
		ds.Rows = append(ds.Rows, row)
	}

	tok, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		for decoder.More() {
			if maxRows > 0 && len(ds.Rows) >= maxRows {
				break
			}
			var obj map[string]any
			if err := decoder.Decode(&obj); err != nil {
				return nil, fmt.Errorf("failed to decode JSON record: %w", err)
			}
			appendObject(obj)
		}
		return ds, nil
	}

	// NDJSON: the first token opened an object; re-decode from scratch
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("unexpected JSON token: %v", tok)
	}

	var first map[string]any
	firstObj := make(map[string]any)
	if err := decodeOpenObject(decoder, firstObj); err != nil {
		return nil, err
	}
	first = firstObj
	appendObject(first)

	for {
		if maxRows > 0 && len(ds.Rows) >= maxRows {
			break
		}
		var obj map[string]any
		err := decoder.Decode(&obj)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode JSON record: %w", err)
		}
		appendObject(obj)
	}

	return ds, nil
}

// decodeOpenObject finishes decoding an object whose opening brace was
// already consumed by a Token call.
func decodeOpenObject(decoder *json.Decoder, into map[string]any) error {
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("failed to read JSON key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected JSON key token: %v", keyTok)
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("failed to read JSON value: %w", err)
		}
		into[key] = value
	}
	// Consume closing brace
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("failed to read JSON object end: %w", err)
	}
	return nil
}

func writeJSON(ds *Dataset, w io.Writer) error {
	records := make([]map[string]string, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		record := make(map[string]string, len(ds.Columns))
		for _, col := range ds.Columns {
			record[col] = row[col]
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(w)
	return encoder.Encode(records)
}

func readParquet(file *os.File, maxRows int) (*Dataset, error) {
	reader := parquet.NewReader(file)
	defer reader.Close()

	schema := reader.Schema()
	fields := schema.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name()
	}

	ds := New(columns)
	buf := make([]parquet.Row, 256)
	for maxRows <= 0 || len(ds.Rows) < maxRows {
		n, err := reader.ReadRows(buf)
		for i := 0; i < n; i++ {
			row := make(Row, len(columns))
			for _, value := range buf[i] {
				col := value.Column()
				if col < 0 || col >= len(columns) {
					continue
				}
				if value.IsNull() {
					row[columns[col]] = ""
					continue
				}
				row[columns[col]] = value.String()
			}
			ds.Rows = append(ds.Rows, row)
			if maxRows > 0 && len(ds.Rows) >= maxRows {
				break
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return ds, nil
}

func stringifyJSON(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
