package analysis

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
)

const utf8BOM = "\ufeff"

// ParseError is returned when an uploaded file is not usable CSV.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "could not parse CSV file: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Candidate is one parsed CSV record, keyed by field name.
// Only fields whose column appears in the header are present.
type Candidate struct {
	Line   int
	Values map[string]string
}

// Has reports whether the candidate's file had a column for the field.
func (c Candidate) Has(field string) bool {
	_, ok := c.Values[field]
	return ok
}

// ParseCSV reads a CSV file whose header row names the screen's fields, by label or column name.
// Header matching ignores case and surrounding whitespace; unknown columns are ignored.
func ParseCSV(screen *Screen, r io.Reader) ([]Candidate, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true

	header, err := rdr.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	columns := make(map[int]string, len(header)) // column index -> field name
	seen := make(map[string]bool, len(header))
	for i, cell := range header {
		if i == 0 {
			cell = strings.TrimPrefix(cell, utf8BOM)
		}
		folded := core.FoldString(cell)
		for _, f := range screen.Fields {
			if !seen[f.Name] && f.matchesHeader(folded) {
				columns[i] = f.Name
				seen[f.Name] = true
				break
			}
		}
	}

	var candidates []Candidate
	for {
		record, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		line, _ := rdr.FieldPos(0)

		c := Candidate{Line: line, Values: make(map[string]string, len(columns))}
		for i, name := range columns {
			if i < len(record) {
				c.Values[name] = record[i]
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// WriteCSV writes rows under the screen's header labels: key columns first, then measures.
func WriteCSV(screen *Screen, w io.Writer, rows []Row) error {
	keys, measures := screen.Keys(), screen.Measures()

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(screen.Fields))
	for _, f := range keys {
		header = append(header, f.Label)
	}
	for _, f := range measures {
		header = append(header, f.Label)
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for _, row := range rows {
		record := make([]string, 0, len(header))
		for _, f := range keys {
			record = append(record, row.Keys[f.Name])
		}
		for _, f := range measures {
			record = append(record, formatMeasure(f, row.Measures[f.Name]))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func formatMeasure(f Field, v float64) string {
	if f.Kind == CurrencyField {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}
