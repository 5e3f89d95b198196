// Package reconcile merges freshly parsed candidate rows into an ordered table of rows,
// matching them on a natural key.
package reconcile

// Result counts what a Reconcile call did with its candidates.
type Result struct {
	Updated  int `json:"updated"`
	Appended int `json:"appended"`
	Skipped  int `json:"skipped"`
}

// Merger configures Reconcile for a row type R and a candidate type C.
type Merger[R, C any] struct {
	// RowKey returns the normalized natural key of a row.
	RowKey func(R) string
	// CandidateKey returns the normalized natural key of a candidate; ok is false
	// when the candidate lacks a mandatory key field and must be skipped.
	CandidateKey func(C) (key string, ok bool)
	// Merge copies the candidate's fields onto a matched row. It must not alter the row's identity.
	Merge func(R, C) R
	// New builds the row appended for an unmatched candidate.
	New func(C) R
}

// Reconcile applies each candidate in order to a copy of existing: the first row sharing its key
// is updated in place, otherwise a new row is appended. Appended rows are matchable by later
// candidates, so duplicates within a batch resolve to the last write.
// The existing slice is never modified.
func Reconcile[R, C any](existing []R, candidates []C, m Merger[R, C]) ([]R, Result) {
	rows := make([]R, len(existing), len(existing)+len(candidates))
	copy(rows, existing)

	index := make(map[string]int, len(rows))
	for i, row := range rows {
		key := m.RowKey(row)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var res Result
	for _, c := range candidates {
		key, ok := m.CandidateKey(c)
		if !ok {
			res.Skipped++
			continue
		}
		if i, found := index[key]; found {
			rows[i] = m.Merge(rows[i], c)
			res.Updated++
			continue
		}
		rows = append(rows, m.New(c))
		index[key] = len(rows) - 1
		res.Appended++
	}
	return rows, res
}
