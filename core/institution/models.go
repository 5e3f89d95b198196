// Package institution serves the static directory of training institutions and audits it.
package institution

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
)

var ErrNotFound = errors.New("institution not found")

type (
	Location struct {
		Address  string `yaml:"address" json:"address"`
		District string `yaml:"district" json:"district"`
		State    string `yaml:"state" json:"state"`
		Pincode  string `yaml:"pincode" json:"pincode"`
	}

	Contact struct {
		Phone   string `yaml:"phone" json:"phone"`
		Email   string `yaml:"email" json:"email" validate:"omitempty,email"`
		Website string `yaml:"website" json:"website" validate:"omitempty,url"`
	}

	Program struct {
		Name            string   `yaml:"name" json:"name" validate:"required"`
		Duration        string   `yaml:"duration" json:"duration"`
		Seats           int      `yaml:"seats" json:"seats" validate:"min=0"`
		Specializations []string `yaml:"specializations" json:"specializations"`
	}

	// ToolScore rates an institution's equipment for one domain, from 0 to 10.
	ToolScore struct {
		Domain string `yaml:"domain" json:"domain" validate:"required"`
		Score  int    `yaml:"score" json:"score" validate:"min=0,max=10"`
	}

	Metadata struct {
		Verified    bool   `yaml:"verified" json:"verified"`
		Source      string `yaml:"source" json:"source"`
		LastUpdated string `yaml:"last_updated" json:"last_updated"`
	}

	Institution struct {
		ID            string      `yaml:"id" json:"id" validate:"required"`
		Name          string      `yaml:"name" json:"name" validate:"required"`
		Category      string      `yaml:"category" json:"category"`
		Type          string      `yaml:"type" json:"type"`
		Ownership     string      `yaml:"ownership" json:"ownership"`
		Location      Location    `yaml:"location" json:"location"`
		Contact       Contact     `yaml:"contact" json:"contact"`
		Programs      []Program   `yaml:"programs" json:"programs" validate:"dive"`
		Tools         []ToolScore `yaml:"tools" json:"tools" validate:"dive"`
		Accreditation string      `yaml:"accreditation" json:"accreditation"`
		Metadata      Metadata    `yaml:"metadata" json:"metadata"`
	}

	// Filter narrows a directory listing. Empty fields match everything.
	Filter struct {
		Search   string `query:"search"`
		Category string `query:"category"`
		Type     string `query:"type"`
		District string `query:"district"`
	}

	// Option populates dropdowns.
	Option struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
)

func (f *Filter) Clean() {
	f.Search = core.FoldString(f.Search)
	f.Category = core.FoldString(f.Category)
	f.Type = core.FoldString(f.Type)
	f.District = core.FoldString(f.District)
}

func (f Filter) match(inst Institution) bool {
	if f.Category != "" && core.FoldString(inst.Category) != f.Category {
		return false
	}
	if f.Type != "" && core.FoldString(inst.Type) != f.Type {
		return false
	}
	if f.District != "" && core.FoldString(inst.Location.District) != f.District {
		return false
	}
	if f.Search != "" {
		for _, s := range []string{inst.ID, inst.Name, inst.Location.District, inst.Category} {
			if strings.Contains(core.FoldString(s), f.Search) {
				return true
			}
		}
		return false
	}
	return true
}

func sortOptions(opts []Option) {
	sort.SliceStable(opts, func(i, j int) bool {
		return core.FoldString(opts[i].Label) < core.FoldString(opts[j].Label)
	})
}
