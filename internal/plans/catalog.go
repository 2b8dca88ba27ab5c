// Package plans holds the static plan catalog: plan ids, their monthly
// credit allotments and the Stripe price ids that resolve to them.
package plans

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlanID is a canonical subscription tier identifier.
type PlanID string

const (
	Free       PlanID = "free"
	Pro        PlanID = "pro"
	Teams      PlanID = "teams"
	Enterprise PlanID = "enterprise"
)

// Legacy plan ids still present on older user and subscription documents.
const (
	legacyTrial   = "trial"
	legacyPremium = "premium"
)

// Plan describes one tier of the catalog.
type Plan struct {
	ID      PlanID `yaml:"id" json:"id"`
	Credits int64  `yaml:"credits" json:"credits"`
	PriceID string `yaml:"priceId,omitempty" json:"priceId,omitempty"`
}

// PriceIDs are the Stripe price ids configured for the paid tiers.
type PriceIDs struct {
	Pro        string
	Teams      string
	Enterprise string
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	plans   map[PlanID]Plan
	byPrice map[string]PlanID
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// DefaultCatalog returns the built-in allotments wired to the given price ids.
func DefaultCatalog(prices PriceIDs) *Catalog {
	return newCatalog([]Plan{
		{ID: Free, Credits: 25},
		{ID: Pro, Credits: 500, PriceID: prices.Pro},
		{ID: Teams, Credits: 1500, PriceID: prices.Teams},
		{ID: Enterprise, Credits: 5000, PriceID: prices.Enterprise},
	})
}

// LoadCatalog builds the default catalog and applies overrides from the YAML
// file at path, if path is not empty. Overrides may change allotments and price
// ids of known plans only.
func LoadCatalog(path string, prices PriceIDs) (*Catalog, error) {
	base := DefaultCatalog(prices)
	if path == "" {
		return base, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog file '%s': %w", path, err)
	}
	return base.withOverrides(raw)
}

func (c *Catalog) withOverrides(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	merged := make(map[PlanID]Plan, len(c.plans))
	for id, p := range c.plans {
		merged[id] = p
	}
	for _, o := range file.Plans {
		current, ok := merged[o.ID]
		if !ok {
			return nil, fmt.Errorf("plan catalog: unknown plan id '%s'", o.ID)
		}
		if o.Credits < 0 {
			return nil, fmt.Errorf("plan catalog: negative credits for plan '%s'", o.ID)
		}
		if o.Credits > 0 {
			current.Credits = o.Credits
		}
		if o.PriceID != "" {
			current.PriceID = o.PriceID
		}
		merged[o.ID] = current
	}

	list := make([]Plan, 0, len(merged))
	for _, p := range merged {
		list = append(list, p)
	}
	return newCatalog(list), nil
}

func newCatalog(list []Plan) *Catalog {
	c := &Catalog{
		plans:   make(map[PlanID]Plan, len(list)),
		byPrice: make(map[string]PlanID, len(list)),
	}
	for _, p := range list {
		c.plans[p.ID] = p
		if p.PriceID != "" {
			c.byPrice[p.PriceID] = p.ID
		}
	}
	return c
}

// Normalize maps raw plan ids, including legacy aliases, onto a canonical id.
// Unknown or empty ids resolve to Free.
func (c *Catalog) Normalize(raw string) PlanID {
	id := strings.ToLower(strings.TrimSpace(raw))
	switch id {
	case legacyTrial:
		return Free
	case legacyPremium:
		return Pro
	}
	if _, ok := c.plans[PlanID(id)]; ok {
		return PlanID(id)
	}
	return Free
}

// CreditsForPlan returns the monthly allotment for planID. Unknown ids get the
// free allotment.
func (c *Catalog) CreditsForPlan(planID PlanID) int64 {
	return c.plans[c.Normalize(string(planID))].Credits
}

// PlanForPriceID resolves a Stripe price id. No match resolves to Free.
func (c *Catalog) PlanForPriceID(priceID string) PlanID {
	if id, ok := c.byPrice[priceID]; ok && priceID != "" {
		return id
	}
	return Free
}

// PriceIDForPlan returns the configured price id of a paid plan.
func (c *Catalog) PriceIDForPlan(planID PlanID) (string, bool) {
	p, ok := c.plans[planID]
	if !ok || p.PriceID == "" {
		return "", false
	}
	return p.PriceID, true
}

// IsKnown reports whether raw names a plan, counting legacy aliases.
func (c *Catalog) IsKnown(raw string) bool {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == legacyTrial || id == legacyPremium {
		return true
	}
	_, ok := c.plans[PlanID(id)]
	return ok
}

// IsPaid reports whether planID is a paid tier.
func IsPaid(planID PlanID) bool {
	return planID != Free && planID != ""
}

// Plans lists the catalog ordered by allotment.
func (c *Catalog) Plans() []Plan {
	list := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Credits < list[j].Credits })
	return list
}

// IsEntitled reports whether a Stripe subscription status grants the plan's
// credits. Only active and trialing subscriptions are entitled.
func IsEntitled(status string) bool {
	return status == "active" || status == "trialing"
}
