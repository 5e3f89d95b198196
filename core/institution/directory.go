package institution

import (
	"io"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	appfs "github.com/trezcool/kaushal/fs"
)

const listingPath = "data/institutions.yaml"

// Directory is the read-only institution listing.
type Directory struct {
	items []Institution
	byID  map[string]int
}

// Load decodes and checks a YAML listing. Identifiers must be unique.
func Load(r io.Reader) (*Directory, error) {
	var items []Institution
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&items); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding institutions")
	}

	validate := validator.New()
	dir := &Directory{items: items, byID: make(map[string]int, len(items))}
	for i, inst := range items {
		if err := validate.Struct(inst); err != nil {
			return nil, errors.Wrapf(err, "validating institution #%d (%s)", i+1, inst.ID)
		}
		if _, dup := dir.byID[inst.ID]; dup {
			return nil, errors.Errorf("duplicate institution id %q", inst.ID)
		}
		dir.byID[inst.ID] = i
	}
	return dir, nil
}

// LoadEmbedded loads the listing shipped with the binaries.
func LoadEmbedded() (*Directory, error) {
	return LoadFS(appfs.FS, listingPath)
}

func LoadFS(fsys fs.FS, path string) (*Directory, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening institutions")
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

func (d *Directory) Len() int { return len(d.items) }

// All returns every institution in listing order.
func (d *Directory) All() []Institution {
	out := make([]Institution, len(d.items))
	copy(out, d.items)
	return out
}

func (d *Directory) Get(id string) (Institution, error) {
	if i, ok := d.byID[id]; ok {
		return d.items[i], nil
	}
	return Institution{}, ErrNotFound
}

// Filter returns the institutions matching f, in listing order.
func (d *Directory) Filter(f Filter) []Institution {
	f.Clean()
	out := make([]Institution, 0, len(d.items))
	for _, inst := range d.items {
		if f.match(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// Options returns dropdown options, sorted by label, optionally restricted to a category.
func (d *Directory) Options(category string) []Option {
	insts := d.Filter(Filter{Category: category})
	opts := make([]Option, 0, len(insts))
	for _, inst := range insts {
		label := inst.Name
		if inst.Location.District != "" {
			label += " (" + inst.Location.District + ")"
		}
		opts = append(opts, Option{Value: inst.ID, Label: label})
	}
	sortOptions(opts)
	return opts
}
