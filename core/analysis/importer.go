package analysis

import (
	"strings"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/reconcile"
)

// ImportResult is what an import hands back to the screen.
type ImportResult struct {
	Rows      []Row            `json:"rows"`
	Result    reconcile.Result `json:"result"`
	Policy    MergePolicy      `json:"policy"`
	Committed bool             `json:"committed"`
}

// Merge reconciles parsed candidates into the current rows of a screen.
// Matched rows keep their id, position and key text; only their measures change.
func Merge(screen *Screen, existing []Row, candidates []Candidate, policy MergePolicy) ([]Row, reconcile.Result) {
	if !policy.Valid() {
		policy = screen.Policy
	}
	return reconcile.Reconcile(existing, candidates, newMerger(screen, policy))
}

func newMerger(screen *Screen, policy MergePolicy) reconcile.Merger[Row, Candidate] {
	keys, measures := screen.Keys(), screen.Measures()

	return reconcile.Merger[Row, Candidate]{
		RowKey: func(r Row) string {
			return screen.NaturalKey(r.Keys)
		},
		CandidateKey: func(c Candidate) (string, bool) {
			parts := make([]string, 0, len(keys))
			for _, f := range keys {
				v := core.FoldString(c.Values[f.Name])
				if f.Mandatory && v == "" {
					return "", false
				}
				parts = append(parts, v)
			}
			return strings.Join(parts, keySep), true
		},
		Merge: func(r Row, c Candidate) Row {
			out := r.Clone()
			for _, f := range measures {
				if policy == PolicyPartial && !c.Has(f.Name) {
					continue
				}
				out.Measures[f.Name] = f.normalize(parseNumber(c.Values[f.Name]))
			}
			return out
		},
		New: func(c Candidate) Row {
			out := NewRow()
			for _, f := range keys {
				out.Keys[f.Name] = core.CleanString(c.Values[f.Name])
			}
			for _, f := range measures {
				out.Measures[f.Name] = f.normalize(parseNumber(c.Values[f.Name]))
			}
			return out
		},
	}
}
