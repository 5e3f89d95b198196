package institution

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/kaushal/core"
)

// Report names; each is written as "<name>-report.json".
const (
	ReportCategories  = "categories"
	ReportMissingData = "missing-data"
	ReportMismatches  = "mismatches"
)

// DuplicateRatio is the name similarity from which two institutions are reported as likely duplicates.
const DuplicateRatio = 0.85

// Fields checked by the missing-data report, in report order.
var auditedFields = []struct {
	name    string
	missing func(Institution) bool
}{
	{"phone", func(i Institution) bool { return core.IsBlank(i.Contact.Phone) }},
	{"email", func(i Institution) bool { return core.IsBlank(i.Contact.Email) }},
	{"website", func(i Institution) bool { return core.IsBlank(i.Contact.Website) }},
	{"pincode", func(i Institution) bool { return core.IsBlank(i.Location.Pincode) }},
	{"accreditation", func(i Institution) bool { return core.IsBlank(i.Accreditation) }},
	{"programs", func(i Institution) bool { return len(i.Programs) == 0 }},
	{"tools", func(i Institution) bool { return len(i.Tools) == 0 }},
}

// Name keywords implying a category. The first matching rule wins.
var categoryRules = []struct {
	pattern  *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`(?i)\b(iti|industrial training)\b`), "ITI"},
	{regexp.MustCompile(`(?i)\bpolytechnic\b`), "Polytechnic"},
	{regexp.MustCompile(`(?i)\buniversity\b`), "University"},
	{regexp.MustCompile(`(?i)\b(institute of technology|engineering college)\b`), "Engineering"},
	{regexp.MustCompile(`(?i)\b(skill cent(re|er)|kaushal kendra|pmkk)\b`), "Skill Centre"},
}

type (
	CategoriesReport struct {
		GeneratedAt time.Time      `json:"generated_at"`
		Total       int            `json:"total"`
		ByCategory  map[string]int `json:"by_category"`
		ByType      map[string]int `json:"by_type"`
		ByDistrict  map[string]int `json:"by_district"`
		ByOwnership map[string]int `json:"by_ownership"`
	}

	MissingEntry struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		Missing    []string `json:"missing"`
		Unverified bool     `json:"unverified"`
	}

	MissingDataReport struct {
		GeneratedAt  time.Time      `json:"generated_at"`
		Total        int            `json:"total"`
		Complete     int            `json:"complete"`
		Unverified   int            `json:"unverified"`
		FieldCounts  map[string]int `json:"field_counts"`
		Institutions []MissingEntry `json:"institutions"`
	}

	CategoryMismatch struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
		Implied  string `json:"implied"`
	}

	Ref struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Duplicate struct {
		First  Ref     `json:"first"`
		Second Ref     `json:"second"`
		Ratio  float64 `json:"ratio"`
	}

	MismatchReport struct {
		GeneratedAt        time.Time          `json:"generated_at"`
		CategoryMismatches []CategoryMismatch `json:"category_mismatches"`
		LikelyDuplicates   []Duplicate        `json:"likely_duplicates"`
	}

	// ReportWriter stores a finished report under its file name.
	ReportWriter interface {
		WriteReport(ctx context.Context, name string, data []byte) error
	}
)

func orUnknown(s string) string {
	if s = core.CleanString(s); s == "" {
		return "Unknown"
	}
	return s
}

// Categories counts institutions per category, type, district and ownership.
func Categories(insts []Institution, now time.Time) CategoriesReport {
	rep := CategoriesReport{
		GeneratedAt: now,
		Total:       len(insts),
		ByCategory:  make(map[string]int),
		ByType:      make(map[string]int),
		ByDistrict:  make(map[string]int),
		ByOwnership: make(map[string]int),
	}
	for _, inst := range insts {
		rep.ByCategory[orUnknown(inst.Category)]++
		rep.ByType[orUnknown(inst.Type)]++
		rep.ByDistrict[orUnknown(inst.Location.District)]++
		rep.ByOwnership[orUnknown(inst.Ownership)]++
	}
	return rep
}

// MissingData lists, per institution, the audited fields left empty. Unverified records are flagged.
func MissingData(insts []Institution, now time.Time) MissingDataReport {
	rep := MissingDataReport{
		GeneratedAt:  now,
		Total:        len(insts),
		FieldCounts:  make(map[string]int, len(auditedFields)),
		Institutions: make([]MissingEntry, 0),
	}
	for _, f := range auditedFields {
		rep.FieldCounts[f.name] = 0
	}

	for _, inst := range insts {
		entry := MissingEntry{ID: inst.ID, Name: inst.Name, Missing: make([]string, 0), Unverified: !inst.Metadata.Verified}
		for _, f := range auditedFields {
			if f.missing(inst) {
				entry.Missing = append(entry.Missing, f.name)
				rep.FieldCounts[f.name]++
			}
		}
		if entry.Unverified {
			rep.Unverified++
		}
		if len(entry.Missing) == 0 {
			rep.Complete++
			if !entry.Unverified {
				continue
			}
		}
		rep.Institutions = append(rep.Institutions, entry)
	}
	return rep
}

// ImpliedCategory returns the category a name suggests, if any.
func ImpliedCategory(name string) (string, bool) {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(name) {
			return rule.category, true
		}
	}
	return "", false
}

// NameSimilarity is the sequence-matching ratio of two case-folded names.
func NameSimilarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(core.FoldString(a), ""), strings.Split(core.FoldString(b), ""))
	return m.Ratio()
}

// Mismatches reports names whose keywords contradict their category, and likely duplicate names.
func Mismatches(insts []Institution, now time.Time) MismatchReport {
	rep := MismatchReport{
		GeneratedAt:        now,
		CategoryMismatches: make([]CategoryMismatch, 0),
		LikelyDuplicates:   make([]Duplicate, 0),
	}
	for _, inst := range insts {
		implied, ok := ImpliedCategory(inst.Name)
		if ok && core.FoldString(implied) != core.FoldString(inst.Category) {
			rep.CategoryMismatches = append(rep.CategoryMismatches, CategoryMismatch{
				ID: inst.ID, Name: inst.Name, Category: inst.Category, Implied: implied,
			})
		}
	}

	for i := 0; i < len(insts); i++ {
		for j := i + 1; j < len(insts); j++ {
			ratio := NameSimilarity(insts[i].Name, insts[j].Name)
			if ratio >= DuplicateRatio {
				rep.LikelyDuplicates = append(rep.LikelyDuplicates, Duplicate{
					First:  Ref{ID: insts[i].ID, Name: insts[i].Name},
					Second: Ref{ID: insts[j].ID, Name: insts[j].Name},
					Ratio:  math.Round(ratio*1000) / 1000,
				})
			}
		}
	}
	sort.SliceStable(rep.LikelyDuplicates, func(i, j int) bool {
		return rep.LikelyDuplicates[i].Ratio > rep.LikelyDuplicates[j].Ratio
	})
	return rep
}

// ReportFileName returns the file a report is written to.
func ReportFileName(report string) string {
	return report + "-report.json"
}

// WriteReports builds the three audit reports and hands them to w. It returns the file names written.
func WriteReports(ctx context.Context, dir *Directory, w ReportWriter, now time.Time) ([]string, error) {
	insts := dir.All()
	reports := []struct {
		name string
		body interface{}
	}{
		{ReportCategories, Categories(insts, now)},
		{ReportMissingData, MissingData(insts, now)},
		{ReportMismatches, Mismatches(insts, now)},
	}

	written := make([]string, 0, len(reports))
	for _, r := range reports {
		data, err := json.MarshalIndent(r.body, "", "  ")
		if err != nil {
			return written, errors.Wrapf(err, "encoding %s report", r.name)
		}
		fname := ReportFileName(r.name)
		if err = w.WriteReport(ctx, fname, append(data, '\n')); err != nil {
			return written, errors.Wrapf(err, "writing %s", fname)
		}
		written = append(written, fname)
	}
	return written, nil
}
