package catalog

import "github.com/yourorg/referraldesk/internal/domain"

// Catalog is the read-only set of promotable products. Products have no
// lifecycle; the seed list is fixed at construction.
type Catalog struct {
	products []domain.Product
	byID     map[string]domain.Product
}

// NewStatic returns the built-in product catalog
func NewStatic() *Catalog {
	return New([]domain.Product{
		{ID: "prod1", Name: "Super Saas Suite", Description: "All-in-one SaaS solution"},
		{ID: "prod2", Name: "Cloud Storage Pro", Description: "Unlimited cloud storage"},
		{ID: "prod3", Name: "DevTools Ultimate", Description: "Productivity tools for developers"},
	})
}

// New builds a catalog from the given products
func New(products []domain.Product) *Catalog {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Catalog{products: products, byID: byID}
}

// List returns every product in catalog order
func (c *Catalog) List() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Lookup returns the product with the given id
func (c *Catalog) Lookup(id string) (domain.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}
