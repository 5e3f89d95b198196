package analysis

import (
	"context"
	"fmt"
	"io"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
)

type (
	// Repository persists analysis rows, one table per screen.
	Repository interface {
		// QueryRows returns the rows of a scope ordered by id.
		QueryRows(ctx context.Context, screen *Screen, scope Scope) ([]Row, error)
		// SaveRows updates rows that have an id and upserts the others on their natural key,
		// in one transaction. It returns the refreshed rows of the scope.
		SaveRows(ctx context.Context, screen *Screen, scope Scope, rows []Row) ([]Row, error)
		// DeleteRow returns ErrNotFound when no row of the scope has the id.
		DeleteRow(ctx context.Context, screen *Screen, scope Scope, id int64) error
		// CountRows counts the rows of a table across every scope.
		CountRows(ctx context.Context, screen *Screen) (int, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}

	// ImportRequest carries an uploaded file. Current holds the screen's unsaved table;
	// when nil the persisted rows are used.
	ImportRequest struct {
		File    io.Reader
		Current []Row
		Policy  MergePolicy
		Commit  bool
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, validate: validate, translator: translator}
}

func (svc *Service) checkScope(scope Scope) error {
	return svc.validate.Struct(scope)
}

// ValidateRow checks that the row's mandatory key fields are not blank.
func (svc *Service) ValidateRow(screen *Screen, row Row, prefix ...string) error {
	var pfx string
	if len(prefix) > 0 {
		pfx = prefix[0]
	}
	var flds []core.FieldError
	for _, f := range screen.Keys() {
		if !f.Mandatory {
			continue
		}
		if err := svc.validate.Var(row.Keys[f.Name], "notblank"); err != nil {
			msg := err.Error()
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				msg = verrs[0].Translate(svc.translator)
			}
			flds = append(flds, core.FieldError{Field: pfx + f.Name, Error: msg})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid row"), flds...)
	}
	return nil
}

func (svc *Service) Fetch(ctx context.Context, screen *Screen, scope Scope) ([]Row, error) {
	if err := svc.checkScope(scope); err != nil {
		return nil, err
	}
	rows, err := svc.repo.QueryRows(ctx, screen, scope)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s rows", screen.ID)
	}
	return rows, nil
}

// cleanRows normalizes rows into a new slice and validates each of them.
func (svc *Service) cleanRows(screen *Screen, rows []Row) ([]Row, error) {
	clean := make([]Row, 0, len(rows))
	for i, row := range rows {
		row = screen.Normalize(row)
		if err := svc.ValidateRow(screen, row, fmt.Sprintf("rows[%d].", i)); err != nil {
			return nil, err
		}
		clean = append(clean, row)
	}
	return clean, nil
}

// Save persists the whole table and returns the refreshed persisted set.
func (svc *Service) Save(ctx context.Context, screen *Screen, scope Scope, rows []Row) ([]Row, error) {
	if err := svc.checkScope(scope); err != nil {
		return nil, err
	}
	clean, err := svc.cleanRows(screen, rows)
	if err != nil {
		return nil, err
	}
	saved, err := svc.repo.SaveRows(ctx, screen, scope, clean)
	if err != nil {
		return nil, errors.Wrapf(err, "saving %s rows", screen.ID)
	}
	return saved, nil
}

// AddRow validates and persists a single entry, returning it with its id.
// An entry whose natural key already exists updates that row.
func (svc *Service) AddRow(ctx context.Context, screen *Screen, scope Scope, row Row) (Row, error) {
	if err := svc.checkScope(scope); err != nil {
		return Row{}, err
	}
	row = screen.Normalize(row)
	row.ID.Valid = false
	if err := svc.ValidateRow(screen, row); err != nil {
		return Row{}, err
	}
	saved, err := svc.repo.SaveRows(ctx, screen, scope, []Row{row})
	if err != nil {
		return Row{}, errors.Wrapf(err, "adding %s row", screen.ID)
	}
	key := screen.NaturalKey(row.Keys)
	for _, r := range saved {
		if screen.NaturalKey(r.Keys) == key {
			return r, nil
		}
	}
	return Row{}, errors.Wrapf(ErrNotFound, "adding %s row", screen.ID)
}

func (svc *Service) DeleteRow(ctx context.Context, screen *Screen, scope Scope, id int64) error {
	if err := svc.checkScope(scope); err != nil {
		return err
	}
	return svc.repo.DeleteRow(ctx, screen, scope, id)
}

// Import merges an uploaded CSV file into the current table, and persists the result on commit.
func (svc *Service) Import(ctx context.Context, screen *Screen, scope Scope, req ImportRequest) (ImportResult, error) {
	if err := svc.checkScope(scope); err != nil {
		return ImportResult{}, err
	}
	candidates, err := ParseCSV(screen, req.File)
	if err != nil {
		return ImportResult{}, err
	}

	var current []Row
	if req.Current == nil {
		if current, err = svc.repo.QueryRows(ctx, screen, scope); err != nil {
			return ImportResult{}, errors.Wrapf(err, "querying %s rows", screen.ID)
		}
	} else {
		current = make([]Row, len(req.Current))
		for i, row := range req.Current {
			current[i] = screen.Normalize(row)
		}
	}

	policy := req.Policy
	if !policy.Valid() {
		policy = screen.Policy
	}
	rows, res := Merge(screen, current, candidates, policy)
	out := ImportResult{Rows: rows, Result: res, Policy: policy}

	if req.Commit {
		if rows, err = svc.cleanRows(screen, rows); err != nil {
			return ImportResult{}, err
		}
		if out.Rows, err = svc.repo.SaveRows(ctx, screen, scope, rows); err != nil {
			return ImportResult{}, errors.Wrapf(err, "saving imported %s rows", screen.ID)
		}
		out.Committed = true
	}
	return out, nil
}

// Export writes the persisted rows of a scope as CSV.
func (svc *Service) Export(ctx context.Context, screen *Screen, scope Scope, w io.Writer) error {
	rows, err := svc.Fetch(ctx, screen, scope)
	if err != nil {
		return err
	}
	return WriteCSV(screen, w, rows)
}

func (svc *Service) Summary(ctx context.Context, screen *Screen, scope Scope) (Summary, error) {
	rows, err := svc.Fetch(ctx, screen, scope)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(screen, rows), nil
}

// Count returns the number of stored rows of a table.
func (svc *Service) Count(ctx context.Context, screen *Screen) (int, error) {
	n, err := svc.repo.CountRows(ctx, screen)
	return n, errors.Wrapf(err, "counting %s rows", screen.ID)
}
