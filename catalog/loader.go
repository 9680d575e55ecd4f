package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog bundles the reward-facing tables an installation serves. The
// zero-config path uses the built-in defaults; deployments may override the
// partner list from a YAML file.
type Catalog struct {
	Companies  []Company   `yaml:"companies"`
	Promotions []Promotion `yaml:"promotions"`
	coupons    []Coupon
}

// Default returns a catalog backed by the built-in tables.
func Default() *Catalog {
	c := &Catalog{
		Companies:  DefaultCompanies,
		Promotions: DefaultPromotions,
	}
	c.coupons = CouponsFromPromotions(c.Promotions)
	return c
}

// LoadFile reads a catalog override from a YAML file. A missing file falls
// back to the defaults; a malformed file is an error so a bad deploy is
// caught early rather than silently serving an empty catalog.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if len(c.Companies) == 0 {
		c.Companies = DefaultCompanies
	}
	if len(c.Promotions) == 0 {
		c.Promotions = DefaultPromotions
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.coupons = CouponsFromPromotions(c.Promotions)
	return &c, nil
}

func (c *Catalog) validate() error {
	byID := make(map[string]bool, len(c.Companies))
	for _, company := range c.Companies {
		if company.ID == "" {
			return fmt.Errorf("catalog company %q: missing id", company.Name)
		}
		if byID[company.ID] {
			return fmt.Errorf("catalog company %q: duplicate id", company.ID)
		}
		byID[company.ID] = true
	}
	for _, promo := range c.Promotions {
		if promo.ID == "" {
			return fmt.Errorf("catalog promotion %q: missing id", promo.Title)
		}
		if !byID[promo.CompanyID] {
			return fmt.Errorf("catalog promotion %q: unknown company %q", promo.ID, promo.CompanyID)
		}
		if promo.MinIQRequired < 0 || promo.MinIQRequired > 100 {
			return fmt.Errorf("catalog promotion %q: min IQ %v out of range", promo.ID, promo.MinIQRequired)
		}
	}
	return nil
}

// Coupons returns the derived coupon list.
func (c *Catalog) Coupons() []Coupon {
	return c.coupons
}

// PromotionByID returns the promotion with the given ID, or nil.
func (c *Catalog) PromotionByID(id string) *Promotion {
	for i := range c.Promotions {
		if c.Promotions[i].ID == id {
			return &c.Promotions[i]
		}
	}
	return nil
}

// CouponByID returns the coupon with the given ID, or nil.
func (c *Catalog) CouponByID(id string) *Coupon {
	for i := range c.coupons {
		if c.coupons[i].ID == id {
			return &c.coupons[i]
		}
	}
	return nil
}
