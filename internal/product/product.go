// Package product holds the per-product onboarding adapters. Each adapter
// owns its table schemas and the ordered decomposition of a flat record into
// table operations; the processing engine stays product-agnostic.
//
// The set of products is closed: adapters are constructed once here and
// selected by product code, never resolved dynamically per record.
package product

import (
	"sort"

	"github.com/DhruvSingla03/query-automation/internal/core"
)

// Catalog is the fixed set of product adapters, keyed by product code.
type Catalog struct {
	adapters map[string]core.Adapter
}

// NewCatalog constructs every known product adapter.
func NewCatalog() *Catalog {
	c := &Catalog{adapters: make(map[string]core.Adapter)}
	for _, a := range []core.Adapter{
		NewFastagAcq(),
	} {
		c.adapters[a.Code()] = a
	}
	return c
}

// ByCode returns the adapter for a product code.
func (c *Catalog) ByCode(code string) (core.Adapter, bool) {
	a, ok := c.adapters[code]
	return a, ok
}

// Codes returns all registered product codes, sorted.
func (c *Catalog) Codes() []string {
	codes := make([]string, 0, len(c.adapters))
	for code := range c.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
