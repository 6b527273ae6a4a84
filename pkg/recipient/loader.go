package recipient

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrNoHeader        = errors.New("recipient table has no header row")
	ErrEmptyColumnName = errors.New("recipient table has an empty column name")
)

// ErrUnsupportedFormat is returned by Read for files that are neither CSV nor xlsx.
var ErrUnsupportedFormat = errors.New("unsupported recipient file format")

// Read picks the reader from the file name extension: .xlsx is read as a workbook,
// .csv and names without extension as CSV. Legacy .xls workbooks are rejected.
func Read(name string, r io.Reader) (*Set, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv", ".txt", "":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w %q, save it as .csv or .xlsx", ErrUnsupportedFormat, ext)
	}
}

// ReadCSV reads a recipient table whose first record is the header.
// Empty cells are null. Cell values stay as text.
func ReadCSV(r io.Reader) (*Set, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}

	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	records := make([][]string, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		records = append(records, record)
	}

	return fromTable(columns, records), nil
}

// ReadXLSX reads the first sheet of a workbook. The first row is the header, rows that
// are entirely empty are dropped. Cells are read as their formatted text.
func ReadXLSX(r io.Reader) (*Set, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	columns, err := normalizeHeader(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}

		records = append(records, row)
	}

	return fromTable(columns, records), nil
}

// fromTable maps text records onto columns. Missing and empty cells are null.
func fromTable(columns []string, records [][]string) *Set {
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		values := make([]interface{}, len(columns))
		for i := range columns {
			if i >= len(record) || record[i] == "" {
				continue
			}

			values[i] = record[i]
		}

		rows = append(rows, NewRow(columns, values))
	}

	set := NewSet(rows...)
	if len(rows) == 0 {
		// keep the header as schema even for an empty table
		set.columns = columns
	}

	return set
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

// FromRecords builds a set from decoded JSON objects. Columns listed in order come first,
// any other key found in the records is appended in lexical order.
// Only scalar values (string, number, bool, null) are accepted.
func FromRecords(order []string, records []map[string]interface{}) (*Set, error) {
	columns := make([]string, 0, len(order))
	seen := make(map[string]struct{})
	for _, col := range order {
		if strings.TrimSpace(col) == "" {
			return nil, ErrEmptyColumnName
		}

		if _, exist := seen[col]; exist {
			continue
		}

		seen[col] = struct{}{}
		columns = append(columns, col)
	}

	extra := make([]string, 0)
	for _, record := range records {
		for key := range record {
			if _, exist := seen[key]; exist {
				continue
			}

			seen[key] = struct{}{}
			extra = append(extra, key)
		}
	}

	sort.Strings(extra)
	columns = append(columns, extra...)

	rows := make([]Row, 0, len(records))
	for i, record := range records {
		values := make([]interface{}, len(columns))
		for j, col := range columns {
			v := record[col]
			switch v.(type) {
			case nil, string, float64, float32, int, int64, int32, uint64, bool:
			default:
				return nil, fmt.Errorf("record %d column %q: unsupported value type %T", i, col, v)
			}

			values[j] = v
		}

		rows = append(rows, NewRow(columns, values))
	}

	set := NewSet(rows...)
	set.columns = columns
	return set, nil
}

func normalizeHeader(header []string) ([]string, error) {
	columns := make([]string, 0, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyColumnName, i+1)
		}

		if _, exist := seen[name]; exist {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}

		seen[name] = struct{}{}
		columns = append(columns, name)
	}

	return columns, nil
}
