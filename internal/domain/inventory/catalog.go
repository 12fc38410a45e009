package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidCatalog = errors.New("inventory: invalid catalog")

// Product is a static catalog entry.
type Product struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	Image        string
	InitialStock int
}

// Catalog is the ordered, read-only list of products the shop sells.
type Catalog struct {
	products []Product
	index    map[string]int
}

func NewCatalog(products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: no products", ErrInvalidCatalog)
	}
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		index:    make(map[string]int, len(products)),
	}
	for _, p := range products {
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("%w: product without id", ErrInvalidCatalog)
		case p.Price.IsNegative():
			return nil, fmt.Errorf("%w: negative price for %s", ErrInvalidCatalog, p.ID)
		case p.InitialStock < 0:
			return nil, fmt.Errorf("%w: negative initial stock for %s", ErrInvalidCatalog, p.ID)
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %s", ErrInvalidCatalog, p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		c.index[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Products returns the products in catalog order.
func (c *Catalog) Products() []Product {
	return append([]Product(nil), c.products...)
}

func (c *Catalog) Lookup(id string) (Product, bool) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Name returns the display name for id, or id itself when it is not in the catalog.
func (c *Catalog) Name(id string) string {
	if p, ok := c.Lookup(id); ok {
		return p.Name
	}
	return id
}

// Defaults returns first-run tables seeded from the catalog.
func (c *Catalog) Defaults() Tables {
	t := NewTables()
	c.FillMissing(&t)
	return t
}

// FillMissing adds catalog defaults for products t does not track yet and
// reports whether anything was added.
func (c *Catalog) FillMissing(t *Tables) bool {
	if t.Quantities == nil {
		t.Quantities = make(map[string]int)
	}
	if t.Prices == nil {
		t.Prices = make(map[string]decimal.Decimal)
	}
	changed := false
	for _, p := range c.products {
		if _, ok := t.Quantities[p.ID]; !ok {
			t.Quantities[p.ID] = p.InitialStock
			changed = true
		}
		if _, ok := t.Prices[p.ID]; !ok {
			t.Prices[p.ID] = p.Price
			changed = true
		}
	}
	return changed
}
