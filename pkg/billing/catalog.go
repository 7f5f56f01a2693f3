package billing

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Plan describes a sellable subscription plan. PriceID is the billing
// provider's price identifier; only plans with Active set are purchasable.
// Plans are immutable once referenced by a live subscription.
type Plan struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Kind    PlanKind `yaml:"kind"`
	PriceID string   `yaml:"price_id"`
	Active  bool     `yaml:"active"`
}

// Catalog is a read-only lookup of sellable plans.
type Catalog interface {
	// FindByID returns the plan with the given id.
	// Returns ErrPlanNotFound when no plan matches.
	FindByID(id string) (Plan, error)

	// FindActiveByKind returns the single active plan of the given kind.
	// Returns ErrPlanNotFound when no active plan matches.
	FindActiveByKind(kind PlanKind) (Plan, error)

	// FindActiveByPriceID resolves an active plan by its external price
	// reference. Used when a provider event carries only a price id.
	FindActiveByPriceID(priceID string) (Plan, error)

	// ListActive returns all purchasable plans.
	ListActive() []Plan
}

// StaticCatalog is an immutable in-memory Catalog.
type StaticCatalog struct {
	plans []Plan
}

// NewStaticCatalog builds a catalog from the given plans.
// Panics if no plans are provided or two plans share an id, to fail fast
// on configuration defects during startup.
func NewStaticCatalog(plans ...Plan) *StaticCatalog {
	if len(plans) == 0 {
		panic("billing: at least one plan is required")
	}
	seen := make(map[string]struct{}, len(plans))
	for _, p := range plans {
		if p.ID == "" {
			panic("billing: plan with empty id")
		}
		if _, ok := seen[p.ID]; ok {
			panic(fmt.Sprintf("billing: duplicate plan id %q", p.ID))
		}
		if _, ok := ParsePlanKind(string(p.Kind)); !ok {
			panic(fmt.Sprintf("billing: plan %q has unknown kind %q", p.ID, p.Kind))
		}
		seen[p.ID] = struct{}{}
	}
	return &StaticCatalog{plans: slices.Clone(plans)}
}

// LoadCatalog reads plan definitions from a YAML file.
//
// Expected layout:
//
//	plans:
//	  - id: monthly
//	    name: Monthly
//	    kind: monthly
//	    price_id: price_xxx
//	    active: true
func LoadCatalog(path string) (*StaticCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("billing: read catalog file: %w", err)
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("billing: parse catalog file: %w", err)
	}
	if len(doc.Plans) == 0 {
		return nil, errors.New("billing: catalog file defines no plans")
	}

	for _, p := range doc.Plans {
		if _, ok := ParsePlanKind(string(p.Kind)); !ok {
			return nil, fmt.Errorf("billing: plan %q has unknown kind %q", p.ID, p.Kind)
		}
	}

	return NewStaticCatalog(doc.Plans...), nil
}

func (c *StaticCatalog) FindByID(id string) (Plan, error) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

func (c *StaticCatalog) FindActiveByKind(kind PlanKind) (Plan, error) {
	for _, p := range c.plans {
		if p.Active && p.Kind == kind {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

func (c *StaticCatalog) FindActiveByPriceID(priceID string) (Plan, error) {
	if priceID == "" {
		return Plan{}, ErrPlanNotFound
	}
	for _, p := range c.plans {
		if p.Active && p.PriceID == priceID {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

func (c *StaticCatalog) ListActive() []Plan {
	active := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}
