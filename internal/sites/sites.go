// Package sites holds the ordered registry of monitored publisher domains.
package sites

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

var ErrUnknownSite = errors.New("unknown site")

// Stratford is the site the service was first built for; it is the default
// when no sites file is configured.
var Stratford = domain.Site{
	ID:          "stratford",
	Domain:      "stratfordjournalpublishers.org",
	DisplayName: "Stratford Journals",
}

type Registry struct {
	order []domain.Site
	byID  map[domain.SiteID]domain.Site
}

func New(list ...domain.Site) (*Registry, error) {
	r := &Registry{byID: make(map[domain.SiteID]domain.Site, len(list))}
	for _, s := range list {
		s.ID = domain.SiteID(strings.TrimSpace(string(s.ID)))
		s.Domain = strings.ToLower(strings.TrimSpace(s.Domain))
		s.DisplayName = strings.TrimSpace(s.DisplayName)
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %q", s.ID)
		}
		r.byID[s.ID] = s
		r.order = append(r.order, s)
	}
	if len(r.order) == 0 {
		return nil, errors.New("no sites configured")
	}
	return r, nil
}

func Default() *Registry {
	r, err := New(Stratford)
	if err != nil {
		panic(err)
	}
	return r
}

func validate(s domain.Site) error {
	switch {
	case s.ID == "":
		return errors.New("site id is empty")
	case s.DisplayName == "":
		return fmt.Errorf("site %q: display_name is empty", s.ID)
	case s.Domain == "":
		return fmt.Errorf("site %q: domain is empty", s.ID)
	case strings.Contains(s.Domain, "://"), strings.ContainsAny(s.Domain, "/ ?#@"):
		return fmt.Errorf("site %q: domain %q must be a bare hostname", s.ID, s.Domain)
	}
	return nil
}

// All returns the sites in configuration order.
func (r *Registry) All() []domain.Site {
	out := make([]domain.Site, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Lookup(id string) (domain.Site, error) {
	s, ok := r.byID[domain.SiteID(strings.TrimSpace(id))]
	if !ok {
		return domain.Site{}, fmt.Errorf("%w: %q", ErrUnknownSite, id)
	}
	return s, nil
}

// First is the site served on the bare "/" route.
func (r *Registry) First() domain.Site { return r.order[0] }

type fileFormat struct {
	Sites []domain.Site `yaml:"sites"`
}

// LoadFile reads a YAML registry:
//
//	sites:
//	  - id: stratford
//	    domain: stratfordjournalpublishers.org
//	    display_name: Stratford Journals
//
// An empty path yields the default registry.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}
	return New(f.Sites...)
}
