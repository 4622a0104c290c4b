// Package catalog holds the product catalog: which products exist and
// which entitlements each can grant. Catalog data is immutable at
// evaluation time; admin writes validate grants against it so a tenant
// can never hold an entitlement its product does not define.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/archvision/entgate/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// Product is one catalog entry.
type Product struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Features []string `yaml:"features"`
	Quotas   []string `yaml:"quotas"`
	Services []string `yaml:"services"`
}

type catalogFile struct {
	Products    []*Product          `yaml:"products"`
	Suggestions map[string][]string `yaml:"suggestions"`
}

// Catalog is an immutable lookup over products and their grantable
// entitlements. Safe for concurrent use.
type Catalog struct {
	products    map[string]*Product
	suggestions map[string][]string
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog defines no products")
	}

	products := make(map[string]*Product, len(f.Products))
	for _, p := range f.Products {
		if p.Code == "" {
			return nil, fmt.Errorf("catalog product without code")
		}
		if _, ok := products[p.Code]; ok {
			return nil, fmt.Errorf("duplicate catalog product: %s", p.Code)
		}
		products[p.Code] = p
	}
	return &Catalog{products: products, suggestions: f.Suggestions}, nil
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		// The embedded catalog is validated by tests; a parse failure
		// here is a build defect.
		panic(err)
	}
	return c
}

// Product returns the catalog entry for code.
func (c *Catalog) Product(code string) (*Product, bool) {
	p, ok := c.products[code]
	return p, ok
}

// ProductCodes returns all product codes in the catalog.
func (c *Catalog) ProductCodes() []string {
	codes := make([]string, 0, len(c.products))
	for code := range c.products {
		codes = append(codes, code)
	}
	return codes
}

// HasEntitlement reports whether the product can grant the entitlement
// of the given kind.
func (c *Catalog) HasEntitlement(productCode, code string, kind domain.EntitlementKind) bool {
	p, ok := c.products[productCode]
	if !ok {
		return false
	}
	var pool []string
	switch kind {
	case domain.KindFeature:
		pool = p.Features
	case domain.KindQuota:
		pool = p.Quotas
	case domain.KindService:
		pool = p.Services
	default:
		return false
	}
	for _, candidate := range pool {
		if candidate == code {
			return true
		}
	}
	return false
}

// Entitlements returns the full grantable set for a product.
func (c *Catalog) Entitlements(productCode string) []domain.Entitlement {
	p, ok := c.products[productCode]
	if !ok {
		return nil
	}
	out := make([]domain.Entitlement, 0, len(p.Features)+len(p.Quotas)+len(p.Services))
	for _, code := range p.Features {
		out = append(out, domain.Entitlement{ProductCode: p.Code, Code: code, Kind: domain.KindFeature})
	}
	for _, code := range p.Quotas {
		out = append(out, domain.Entitlement{ProductCode: p.Code, Code: code, Kind: domain.KindQuota})
	}
	for _, code := range p.Services {
		out = append(out, domain.Entitlement{ProductCode: p.Code, Code: code, Kind: domain.KindService})
	}
	return out
}

// Suggestions returns the product codes suggested for a tenant display
// type at creation time. Display types never reach the engine; the
// suggestion list is an admin UI hint only.
func (c *Catalog) Suggestions(displayType string) []string {
	return c.suggestions[displayType]
}
