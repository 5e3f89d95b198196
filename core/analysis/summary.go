package analysis

import (
	"math"
	"strings"
)

const (
	metricPlacement   = "placement_pct"
	metricFemaleShare = "female_share_pct"
	metricUtilization = "utilization_pct"
)

type RowSummary struct {
	Label   string             `json:"label"`
	Metrics map[string]float64 `json:"metrics"`
	Grade   string             `json:"grade,omitempty"`
}

// Summary holds the chart figures of one table.
type Summary struct {
	Screen string             `json:"screen"`
	Totals map[string]float64 `json:"totals"`
	Rows   []RowSummary       `json:"rows"`
	Total  RowSummary         `json:"total"`
}

// Grade maps a percentage to the dashboard's grade bands.
func Grade(pct float64) string {
	switch {
	case pct >= 70:
		return "A"
	case pct >= 50:
		return "B"
	case pct >= 30:
		return "C"
	default:
		return "D"
	}
}

// Percent returns part/whole*100 rounded to 2 decimals, 0 when whole is 0.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(part/whole*100*100) / 100
}

// Summarize derives the chart aggregates of a table.
func Summarize(screen *Screen, rows []Row) Summary {
	sum := Summary{
		Screen: screen.ID,
		Totals: make(map[string]float64),
		Rows:   make([]RowSummary, 0, len(rows)),
	}
	for _, f := range screen.Measures() {
		sum.Totals[f.Name] = 0
	}

	for _, row := range rows {
		for _, f := range screen.Measures() {
			sum.Totals[f.Name] += row.Measures[f.Name]
		}
		sum.Rows = append(sum.Rows, summarizeRow(screen, rowLabel(screen, row), row.Measures))
	}
	for name, v := range sum.Totals {
		sum.Totals[name] = math.Round(v*100) / 100
	}
	sum.Total = summarizeRow(screen, "Total", sum.Totals)
	return sum
}

func rowLabel(screen *Screen, row Row) string {
	parts := make([]string, 0, 4)
	for _, f := range screen.Keys() {
		if v := row.Keys[f.Name]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " / ")
}

func summarizeRow(screen *Screen, label string, m map[string]float64) RowSummary {
	rs := RowSummary{Label: label, Metrics: make(map[string]float64)}

	gendered := screen.HasMeasure("male_trained") && screen.HasMeasure("female_trained")
	var trained, placed float64
	var hasPlacement bool
	switch {
	case screen.HasMeasure("trained") && screen.HasMeasure("placed"):
		trained, placed, hasPlacement = m["trained"], m["placed"], true
	case gendered && screen.HasMeasure("male_placed") && screen.HasMeasure("female_placed"):
		trained = m["male_trained"] + m["female_trained"]
		placed = m["male_placed"] + m["female_placed"]
		hasPlacement = true
	}

	if hasPlacement {
		pct := Percent(placed, trained)
		rs.Metrics[metricPlacement] = pct
		rs.Grade = Grade(pct)
	}
	if gendered {
		rs.Metrics[metricFemaleShare] = Percent(m["female_trained"], m["male_trained"]+m["female_trained"])
	}
	if screen.HasMeasure("utilized_amount") && screen.HasMeasure("released_amount") {
		pct := Percent(m["utilized_amount"], m["released_amount"])
		rs.Metrics[metricUtilization] = pct
		rs.Grade = Grade(pct)
	}
	return rs
}
