package analysis

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound      = errors.New("row not found")
	ErrUnknownScreen = errors.New("unknown screen")
)

// Scope partitions every analysis table.
type Scope struct {
	DistrictID string `json:"district_id" validate:"notblank"`
	Period     string `json:"period" validate:"required,period"`
}

// Row is one line of an analysis table. ID is null until the row is persisted.
// It is encoded as a flat JSON object: {"id": 1, "scheme_name": "PMKVY", "target": 100, ...}.
type Row struct {
	ID       null.Int64
	Keys     map[string]string
	Measures map[string]float64
}

func NewRow() Row {
	return Row{Keys: make(map[string]string), Measures: make(map[string]float64)}
}

func (r Row) IsPersisted() bool { return r.ID.Valid }

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	out := Row{
		ID:       r.ID,
		Keys:     make(map[string]string, len(r.Keys)),
		Measures: make(map[string]float64, len(r.Measures)),
	}
	for k, v := range r.Keys {
		out.Keys[k] = v
	}
	for k, v := range r.Measures {
		out.Measures[k] = v
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(r.Keys)+len(r.Measures)+1)
	for k, v := range r.Keys {
		m[k] = v
	}
	for k, v := range r.Measures {
		m[k] = v
	}
	m["id"] = r.ID
	return json.Marshal(m)
}

// UnmarshalJSON accepts a flat object: strings become keys, numbers become measures.
// Screen.Normalize sorts out fields sent with the wrong JSON type.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = NewRow()
	for name, val := range raw {
		if name == "id" {
			if err := r.ID.UnmarshalJSON(val); err != nil {
				return errors.Wrap(err, "decoding id")
			}
			continue
		}
		var num float64
		if err := json.Unmarshal(val, &num); err == nil {
			r.Measures[name] = num
			continue
		}
		var str string
		if err := json.Unmarshal(val, &str); err == nil {
			r.Keys[name] = str
		}
		// nulls, bools and nested values are dropped
	}
	return nil
}

// String is used in logs and test failures.
func (r Row) String() string {
	parts := make([]string, 0, len(r.Keys)+len(r.Measures))
	for k, v := range r.Keys {
		parts = append(parts, k+"="+strconv.Quote(v))
	}
	for k, v := range r.Measures {
		parts = append(parts, k+"="+strconv.FormatFloat(v, 'f', -1, 64))
	}
	sort.Strings(parts)
	id := "null"
	if r.ID.Valid {
		id = strconv.FormatInt(r.ID.Int64, 10)
	}
	return "{id=" + id + " " + strings.Join(parts, " ") + "}"
}

// parseNumber is lenient: thousands separators are dropped and anything unparsable is 0.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
