// Package sources holds the registry of crawlable courts. The built-in set
// covers the high courts (including extended benches) and the district
// courts the enrichment endpoint serves; a YAML file can extend or replace
// entries for deployments that track new benches before a release.
package sources

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Kind classifies a court by which site layout it uses.
type Kind string

const (
	KindHigh     Kind = "high"
	KindDistrict Kind = "district"
	KindSpecial  Kind = "special"
)

// ParseKind converts a string flag value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "high":
		return KindHigh, nil
	case "district":
		return KindDistrict, nil
	case "special":
		return KindSpecial, nil
	default:
		return "", eris.Errorf("sources: unknown court kind %q (valid: high, district, special)", s)
	}
}

// Court identifies one crawlable court.
type Court struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Kind       Kind   `yaml:"kind"`
	DistrictID int    `yaml:"district_id,omitempty"` // case detail endpoint path segment, district courts only
}

// BenchListPath returns the site path serving the bench list for a date.
func (c Court) BenchListPath() string {
	return fmt.Sprintf("/court/%s/bench_list", c.ID)
}

// CauseListPath returns the site path serving one bench's cause list.
func (c Court) CauseListPath() string {
	return fmt.Sprintf("/court/%s/cause_list_detail", c.ID)
}

// SpecialListPath returns the special court's daily report endpoint. It
// serves both the bench form (mode=showbench) and the per-bench cause
// lists (mode=show).
func (c Court) SpecialListPath() string {
	return "/special/syspublic.php?d=reports&f=daily_public"
}

// DetailPath returns the case detail endpoint path for district courts.
func (c Court) DetailPath() string {
	return fmt.Sprintf("/weekly_dainik/pesi/case_process_detail/%d", c.DistrictID)
}

// Registry resolves court identifiers.
type Registry struct {
	byID map[string]Court
}

// NewRegistry builds a registry with the built-in court set.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]Court, len(builtin))}
	for _, c := range builtin {
		r.byID[c.ID] = c
	}
	return r
}

// LoadOverrides merges courts from a YAML file into the registry. Entries
// with an existing ID replace the built-in definition.
func (r *Registry) LoadOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "sources: read overrides %s", path)
	}
	var courts []Court
	if err := yaml.Unmarshal(raw, &courts); err != nil {
		return eris.Wrapf(err, "sources: parse overrides %s", path)
	}
	for _, c := range courts {
		if c.ID == "" || c.Kind == "" {
			return eris.Errorf("sources: override entry missing id or kind: %+v", c)
		}
		r.byID[c.ID] = c
	}
	return nil
}

// Lookup returns the court for an identifier. An unknown identifier is a
// configuration error and fatal at startup.
func (r *Registry) Lookup(id string) (Court, error) {
	c, ok := r.byID[id]
	if !ok {
		return Court{}, eris.Errorf("sources: unknown court identifier %q", id)
	}
	return c, nil
}

// ByKind returns all courts of the given kind, ordered by ID.
func (r *Registry) ByKind(k Kind) []Court {
	var out []Court
	for _, c := range r.byID {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Select resolves an explicit ID list, or falls back to all courts of a
// kind when the list is empty.
func (r *Registry) Select(ids []string, kind Kind) ([]Court, error) {
	if len(ids) == 0 {
		courts := r.ByKind(kind)
		if len(courts) == 0 {
			return nil, eris.Errorf("sources: no courts registered for kind %q", kind)
		}
		return courts, nil
	}
	out := make([]Court, 0, len(ids))
	for _, id := range ids {
		c, err := r.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
