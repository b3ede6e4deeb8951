// Package tabular decodes the pipe-delimited tables returned by the switch's
// list commands.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrFormat means a response body is not a well-formed table.
var ErrFormat = errors.New("tabular: malformed table")

// Delimiter separates fields within a row.
const Delimiter = '|'

// Record is one table row keyed by column name.
type Record map[string]string

// Get returns the field value, or "" when the column is absent.
func (r Record) Get(field string) string {
	return r[field]
}

// Int parses the field as a base-10 integer. ok is false when the field is
// absent or not numeric.
func (r Record) Int(field string) (n int64, ok bool) {
	v, present := r[field]
	if !present {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Table is a decoded response: column names and rows, both in source order.
type Table struct {
	Columns []string
	Records []Record
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Records)
}

// ParseResponse splits the header section off a raw response and parses the
// remaining body as a table. Header lines may end in "\n" or "\r\n".
func ParseResponse(raw []byte) (*Table, error) {
	rest := raw
	for len(rest) > 0 {
		line, next, found := bytes.Cut(rest, []byte("\n"))
		if !found {
			break
		}
		if len(bytes.TrimRight(line, "\r")) == 0 {
			return Parse(next)
		}
		rest = next
	}
	return nil, fmt.Errorf("%w: no header/body separator", ErrFormat)
}

// Parse decodes a table body. The first row names the columns and the last
// row is the switch's trailing status row (e.g. "+OK"), which is verified and
// dropped. Short rows are padded with empty values; extra fields are ignored.
func Parse(body []byte) (*Table, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFormat)
	}
	if bytes.HasPrefix(body, []byte("-ERR")) {
		firstLine, _, _ := bytes.Cut(body, []byte("\n"))
		return nil, fmt.Errorf("%w: switch returned %q", ErrFormat, firstLine)
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	columns, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header row: %w", ErrFormat, err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: missing trailing status row", ErrFormat)
	}
	trailer := rows[len(rows)-1]
	if !isStatusRow(trailer, len(columns)) {
		return nil, fmt.Errorf("%w: last row %q is a data row, expected trailing status row", ErrFormat, strings.Join(trailer, string(Delimiter)))
	}
	rows = rows[:len(rows)-1]

	table := &Table{
		Columns: columns,
		Records: make([]Record, 0, len(rows)),
	}
	for _, row := range rows {
		record := make(Record, len(columns))
		for i, column := range columns {
			if i < len(row) {
				record[column] = row[i]
			} else {
				record[column] = ""
			}
		}
		table.Records = append(table.Records, record)
	}

	return table, nil
}

// isStatusRow reports whether row is the synthetic row the switch appends
// after the data: it carries fewer fields than the header, or a +OK marker.
func isStatusRow(row []string, columns int) bool {
	if len(row) < columns {
		return true
	}
	return len(row) > 0 && strings.HasPrefix(strings.TrimSpace(row[0]), "+OK")
}
