// Package record normalizes query results at the ingestion boundary.
//
// Column names are upper-cased once so lookups are case-insensitive, and
// numeric values (the driver hands back exact decimals as strings) are
// converted to float64 once. Nothing downstream converts ad hoc.
package record

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one result row keyed by upper-cased column name.
type Record map[string]interface{}

// New builds a record from arbitrary-case keys.
func New(values map[string]interface{}) Record {
	r := make(Record, len(values))
	for k, v := range values {
		r[normalize(k)] = v
	}
	return r
}

func normalize(column string) string {
	return strings.ToUpper(strings.TrimSpace(column))
}

// Get returns the raw value of a column, case-insensitively.
func (r Record) Get(column string) (interface{}, bool) {
	v, ok := r[normalize(column)]
	return v, ok
}

// Has reports whether the column exists and is not NULL.
func (r Record) Has(column string) bool {
	v, ok := r.Get(column)
	return ok && v != nil
}

// String returns the column as text; NULL and missing yield "".
func (r Record) String(column string) string {
	v, ok := r.Get(column)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns a numeric column and whether it held a value.
func (r Record) Float(column string) (float64, bool) {
	v, ok := r.Get(column)
	if !ok || v == nil {
		return 0, false
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FloatOr returns a numeric column or def when NULL or missing.
func (r Record) FloatOr(column string, def float64) float64 {
	if f, ok := r.Float(column); ok {
		return f
	}
	return def
}

// Int returns a numeric column truncated to int.
func (r Record) Int(column string) (int, bool) {
	f, ok := r.Float(column)
	return int(f), ok
}

// Bool interprets booleans and the platform's "true"/"false"/"Y"/"N" strings.
func (r Record) Bool(column string) (bool, bool) {
	v, ok := r.Get(column)
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	}
	switch strings.ToLower(r.String(column)) {
	case "true", "y", "yes", "on", "1":
		return true, true
	case "false", "n", "no", "off", "0":
		return false, true
	}
	return false, false
}

// Time returns a timestamp column.
func (r Record) Time(column string) (time.Time, bool) {
	v, ok := r.Get(column)
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return ParseTime(t)
	}
	return time.Time{}, false
}

// timestamp spellings accepted from drivers and declarations; zoneless
// forms are UTC
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp in any of the spellings the platform returns.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Result is a normalized result set.
type Result struct {
	Columns []string
	Records []Record
}

// Len returns the number of records
func (r *Result) Len() int {
	return len(r.Records)
}

// Empty reports whether the result has no records
func (r *Result) Empty() bool {
	return len(r.Records) == 0
}

// FromRows drains rows into a Result. Columns listed in numeric, and any
// value the driver typed as a number, are converted to float64.
func FromRows(rows *sql.Rows, numeric ...string) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = normalize(c)
	}

	isNumeric := make(map[string]bool, len(numeric))
	for _, c := range numeric {
		isNumeric[normalize(c)] = true
	}

	result := &Result{Columns: names}
	for rows.Next() {
		values := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(Record, len(names))
		for i, name := range names {
			v, err := normalizeValue(values[i], isNumeric[name])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			rec[name] = v
		}
		result.Records = append(result.Records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func normalizeValue(v interface{}, numeric bool) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, decimal.Decimal:
		return toFloat(t)
	case []byte:
		return normalizeValue(string(t), numeric)
	case string:
		if !numeric {
			return t, nil
		}
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return toFloat(t)
	default:
		return v, nil
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case decimal.Decimal:
		return t.InexactFloat64(), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return toFloat(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, fmt.Errorf("empty numeric value")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
