package subscription

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan maps a provider plan id to the internal plan name written to
// users.subscription_plan.
type Plan struct {
	ID          string `yaml:"id"`   // provider plan id, e.g. P-5ML4271244454362WXNWU5NQ
	Name        string `yaml:"name"` // internal plan name, e.g. "pro"
	Provider    string `yaml:"provider"`
	Description string `yaml:"description"`
}

// Catalog is an immutable set of plans keyed by provider plan id.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog builds a catalog from plans. It panics if no plans are given
// so the service always has at least one valid plan.
func NewCatalog(plans ...Plan) *Catalog {
	if len(plans) < 1 {
		panic("at least one plan is required")
	}
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.ID] = p
	}
	return c
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// ParseCatalog decodes a YAML plan list:
//
//	plans:
//	  - id: P-5ML4271244454362WXNWU5NQ
//	    name: pro
//	    provider: paypal
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("%w: no plans defined", ErrInvalidPlanConfiguration)
	}

	seen := make(map[string]struct{}, len(f.Plans))
	for i, p := range f.Plans {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: plan %d needs id and name", ErrInvalidPlanConfiguration, i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %s", ErrInvalidPlanConfiguration, p.ID)
		}
		seen[p.ID] = struct{}{}
		f.Plans[i] = p
	}
	return NewCatalog(f.Plans...), nil
}

// LoadCatalog reads and parses the YAML catalog at path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return ParseCatalog(data)
}

// Lookup returns the plan for a provider plan id.
func (c *Catalog) Lookup(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Plans returns all plans ordered by id.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Plan) int { return strings.Compare(a.ID, b.ID) })
	return out
}
