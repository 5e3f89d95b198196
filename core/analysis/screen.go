package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/trezcool/kaushal/core"
)

type FieldKind string

const (
	KeyField      FieldKind = "key"
	CountField    FieldKind = "count"
	CurrencyField FieldKind = "currency"
)

// MergePolicy decides what an import does to the measures of a matched row.
type MergePolicy string

const (
	// PolicyPartial only overwrites the measures whose column was in the imported header.
	PolicyPartial MergePolicy = "partial"
	// PolicyOverwrite replaces every measure; absent columns become 0.
	PolicyOverwrite MergePolicy = "overwrite"
)

func (p MergePolicy) Valid() bool {
	return p == PolicyPartial || p == PolicyOverwrite
}

type Field struct {
	Name      string    `json:"name"`  // column name
	Label     string    `json:"label"` // CSV header
	Kind      FieldKind `json:"kind"`
	Mandatory bool      `json:"mandatory,omitempty"`
}

func (f Field) IsKey() bool { return f.Kind == KeyField }

// matchesHeader reports whether a (folded) CSV header cell designates the field.
func (f Field) matchesHeader(folded string) bool {
	return folded == core.FoldString(f.Label) ||
		folded == f.Name ||
		folded == strings.ReplaceAll(f.Name, "_", " ")
}

// normalize rounds a measure the way it is stored.
func (f Field) normalize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if f.Kind == CurrencyField {
		return math.Round(v*100) / 100
	}
	return math.Trunc(v)
}

// Screen describes one analysis table: its storage table, natural key and measures.
type Screen struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Table  string      `json:"-"`
	Fields []Field     `json:"fields"`
	Policy MergePolicy `json:"policy"`
}

// Keys returns the natural key fields, in order.
func (s *Screen) Keys() []Field {
	flds := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.IsKey() {
			flds = append(flds, f)
		}
	}
	return flds
}

// Measures returns the numeric fields, in order.
func (s *Screen) Measures() []Field {
	flds := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.IsKey() {
			flds = append(flds, f)
		}
	}
	return flds
}

func (s *Screen) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s *Screen) HasMeasure(name string) bool {
	f, ok := s.Field(name)
	return ok && !f.IsKey()
}

const keySep = "\x1f"

// NaturalKey returns the case-folded key of a row, as stored in the natural_key column.
func (s *Screen) NaturalKey(keys map[string]string) string {
	parts := make([]string, 0, 4)
	for _, f := range s.Keys() {
		parts = append(parts, core.FoldString(keys[f.Name]))
	}
	return strings.Join(parts, keySep)
}

// Normalize returns a copy of row holding only the screen's fields: keys trimmed,
// measures rounded, numeric strings parsed and missing values zeroed.
// Numbers sent for key fields are kept as their decimal text.
func (s *Screen) Normalize(row Row) Row {
	out := NewRow()
	out.ID = row.ID
	for _, f := range s.Fields {
		if f.IsKey() {
			k, ok := row.Keys[f.Name]
			if v, isNum := row.Measures[f.Name]; !ok && isNum {
				k = strconv.FormatFloat(v, 'f', -1, 64)
			}
			out.Keys[f.Name] = core.CleanString(k)
			continue
		}
		v, ok := row.Measures[f.Name]
		if !ok {
			v = parseNumber(row.Keys[f.Name])
		}
		out.Measures[f.Name] = f.normalize(v)
	}
	return out
}

var screens = []*Screen{
	{
		ID:    "scheme",
		Title: "Scheme Analysis",
		Table: "scheme_analysis",
		Fields: []Field{
			{Name: "scheme_name", Label: "Scheme", Kind: KeyField, Mandatory: true},
			{Name: "target", Label: "Target", Kind: CountField},
			{Name: "male_trained", Label: "Male Trained", Kind: CountField},
			{Name: "female_trained", Label: "Female Trained", Kind: CountField},
			{Name: "male_placed", Label: "Male Placed", Kind: CountField},
			{Name: "female_placed", Label: "Female Placed", Kind: CountField},
		},
		Policy: PolicyOverwrite,
	},
	{
		ID:    "sector",
		Title: "Sector Analysis",
		Table: "sector_analysis",
		Fields: []Field{
			{Name: "sector_name", Label: "Sector", Kind: KeyField, Mandatory: true},
			{Name: "trained", Label: "Trained", Kind: CountField},
			{Name: "certified", Label: "Certified", Kind: CountField},
			{Name: "placed", Label: "Placed", Kind: CountField},
			{Name: "self_employed", Label: "Self Employed", Kind: CountField},
		},
		Policy: PolicyOverwrite,
	},
	{
		ID:    "social-category",
		Title: "Social Category Analysis",
		Table: "social_category_analysis",
		Fields: []Field{
			{Name: "social_category", Label: "Social Category", Kind: KeyField, Mandatory: true},
			{Name: "male_trained", Label: "Male Trained", Kind: CountField},
			{Name: "female_trained", Label: "Female Trained", Kind: CountField},
			{Name: "male_placed", Label: "Male Placed", Kind: CountField},
			{Name: "female_placed", Label: "Female Placed", Kind: CountField},
		},
		Policy: PolicyOverwrite,
	},
	{
		ID:    "training-partner",
		Title: "Training Partner Analysis",
		Table: "training_partner_analysis",
		Fields: []Field{
			{Name: "training_partner", Label: "Training Partner", Kind: KeyField, Mandatory: true},
			{Name: "scheme_name", Label: "Scheme", Kind: KeyField, Mandatory: true},
			{Name: "sector_name", Label: "Sector", Kind: KeyField},
			{Name: "course_name", Label: "Course", Kind: KeyField},
			{Name: "batches", Label: "Batches", Kind: CountField},
			{Name: "enrolled", Label: "Enrolled", Kind: CountField},
			{Name: "trained", Label: "Trained", Kind: CountField},
			{Name: "certified", Label: "Certified", Kind: CountField},
			{Name: "placed", Label: "Placed", Kind: CountField},
		},
		Policy: PolicyPartial,
	},
	{
		ID:    "cost-category",
		Title: "Cost Category Analysis",
		Table: "cost_category_analysis",
		Fields: []Field{
			{Name: "cost_category", Label: "Cost Category", Kind: KeyField, Mandatory: true},
			{Name: "scheme_name", Label: "Scheme", Kind: KeyField},
			{Name: "sanctioned_amount", Label: "Sanctioned Amount", Kind: CurrencyField},
			{Name: "released_amount", Label: "Released Amount", Kind: CurrencyField},
			{Name: "utilized_amount", Label: "Utilized Amount", Kind: CurrencyField},
		},
		Policy: PolicyPartial,
	},
}

// Screens returns every analysis screen, in display order.
func Screens() []*Screen {
	out := make([]*Screen, len(screens))
	copy(out, screens)
	return out
}

func LookupScreen(id string) (*Screen, error) {
	for _, s := range screens {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrUnknownScreen
}
