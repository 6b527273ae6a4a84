package recipient

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultAddressColumn is the column holding the recipient address when none is configured.
const DefaultAddressColumn = "Email"

// Row is one recipient record. It shares the column schema of the Set it belongs to,
// columns not populated for this row hold a nil value.
type Row struct {
	columns []string
	values  map[string]interface{}
}

// NewRow creates a row from parallel column and value slices.
// Missing trailing values are treated as null.
func NewRow(columns []string, values []interface{}) Row {
	cols := make([]string, len(columns))
	copy(cols, columns)

	vals := make(map[string]interface{}, len(cols))
	for i, col := range cols {
		if i < len(values) {
			vals[col] = values[i]
			continue
		}

		vals[col] = nil
	}

	return Row{
		columns: cols,
		values:  vals,
	}
}

// Columns returns the schema of the row in order.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Get returns the raw value for the column and whether the column is part of the schema.
func (r Row) Get(column string) (value interface{}, ok bool) {
	value, ok = r.values[column]
	return
}

// String returns the value of column as text. Null and unknown columns render as empty string.
func (r Row) String(column string) string {
	v, ok := r.values[column]
	if !ok {
		return ""
	}

	return Stringify(v)
}

// Address returns the trimmed address value.
// It returns false when the column is missing, null or blank.
func (r Row) Address(column string) (string, bool) {
	v, ok := r.values[column]
	if !ok || v == nil {
		return "", false
	}

	addr := strings.TrimSpace(Stringify(v))
	if addr == "" {
		return "", false
	}

	return addr, true
}

// withSchema re-keys the row onto a wider schema.
func (r Row) withSchema(columns []string) Row {
	vals := make(map[string]interface{}, len(columns))
	for _, col := range columns {
		vals[col] = r.values[col]
	}

	return Row{
		columns: columns,
		values:  vals,
	}
}

// Set is an ordered, immutable collection of rows that share one column schema.
type Set struct {
	columns []string
	rows    []Row
}

// NewSet builds a set from rows. The schema is the union of all row columns in first-seen order.
func NewSet(rows ...Row) *Set {
	columns := make([]string, 0)
	seen := make(map[string]struct{})
	for _, row := range rows {
		for _, col := range row.columns {
			if _, exist := seen[col]; exist {
				continue
			}

			seen[col] = struct{}{}
			columns = append(columns, col)
		}
	}

	normalized := make([]Row, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, row.withSchema(columns))
	}

	return &Set{
		columns: columns,
		rows:    normalized,
	}
}

// Columns returns the schema of the set.
func (s *Set) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// HasColumn reports whether column is part of the schema.
func (s *Set) HasColumn(column string) bool {
	for _, col := range s.columns {
		if col == column {
			return true
		}
	}

	return false
}

// Len returns the number of rows.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}

	return len(s.rows)
}

// Row returns the row at index i.
func (s *Set) Row(i int) (Row, error) {
	if i < 0 || i >= s.Len() {
		return Row{}, fmt.Errorf("row index %d out of range [0, %d)", i, s.Len())
	}

	return s.rows[i], nil
}

// Stringify renders a scalar cell value as text.
// Integral floats render without a fractional part so a spreadsheet number 42 becomes "42".
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return Stringify(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// IsPlausibleAddress does a deliberately permissive shape check: a non-empty local part,
// an "@" and a domain containing a dot. Nothing else is enforced.
func IsPlausibleAddress(addr string) bool {
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return false
	}

	domain := addr[at+1:]
	return strings.Contains(domain, ".")
}
