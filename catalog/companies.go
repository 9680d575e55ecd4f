package catalog

import (
	"fmt"
	"strings"
	"time"
)

// CompanyCategory classifies a partner company.
type CompanyCategory string

const (
	CategoryFood      CompanyCategory = "food"
	CategoryFashion   CompanyCategory = "fashion"
	CategoryTransport CompanyCategory = "transport"
	CategoryEnergy    CompanyCategory = "energy"
	CategoryLifestyle CompanyCategory = "lifestyle"
)

// Company is a sustainability-focused partner whose products can be scanned
// and whose promotions can be unlocked.
type Company struct {
	ID                   string          `json:"id" yaml:"id"`
	Name                 string          `json:"name" yaml:"name"`
	Category             CompanyCategory `json:"category" yaml:"category"`
	Description          string          `json:"description" yaml:"description"`
	SustainabilityWeight float64         `json:"sustainability_weight" yaml:"sustainability_weight"` // 0.5-2.0 point multiplier
	BarcodePrefix        string          `json:"barcode_prefix,omitempty" yaml:"barcode_prefix,omitempty"`
}

// PromotionType classifies the benefit a promotion grants.
type PromotionType string

const (
	PromoPercentage PromotionType = "percentage"
	PromoFlat       PromotionType = "flat"
	PromoFreebie    PromotionType = "freebie"
	PromoCashback   PromotionType = "cashback"
)

// Promotion is a reward offer gated by a minimum Impact IQ.
type Promotion struct {
	ID             string        `json:"id" yaml:"id"`
	CompanyID      string        `json:"company_id" yaml:"company_id"`
	Title          string        `json:"title" yaml:"title"`
	Description    string        `json:"description" yaml:"description"`
	Type           PromotionType `json:"type" yaml:"type"`
	Value          float64       `json:"value" yaml:"value"`
	MinIQRequired  float64       `json:"min_iq_required" yaml:"min_iq_required"`
	ValidFrom      time.Time     `json:"valid_from" yaml:"valid_from"`
	ValidUntil     time.Time     `json:"valid_until" yaml:"valid_until"`
	MaxRedemptions int           `json:"max_redemptions" yaml:"max_redemptions"`
	Active         bool          `json:"active" yaml:"active"`
}

// Coupon is the redeemable face of a promotion.
type Coupon struct {
	ID            string        `json:"id"`
	PromotionID   string        `json:"promotion_id"`
	CompanyID     string        `json:"company_id"`
	Code          string        `json:"code"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	DiscountValue float64       `json:"discount_value"`
	DiscountType  PromotionType `json:"discount_type"`
	MinIQRequired float64       `json:"min_iq_required"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

// DefaultCompanies is the built-in partner catalog.
var DefaultCompanies = []Company{
	{ID: "terra-foods", Name: "Terra Organics", Category: CategoryFood, Description: "Farm-to-table organic food. Zero pesticides, 100% compostable packaging.", SustainabilityWeight: 1.8, BarcodePrefix: "301"},
	{ID: "greenweave", Name: "GreenWeave", Category: CategoryFashion, Description: "Sustainable fashion from recycled textiles. Fair trade certified.", SustainabilityWeight: 1.5, BarcodePrefix: "544"},
	{ID: "voltride", Name: "VoltRide", Category: CategoryTransport, Description: "Electric micro-mobility: e-bikes, e-scooters, shared EVs.", SustainabilityWeight: 1.6, BarcodePrefix: "762"},
	{ID: "solarhome", Name: "SolarHome", Category: CategoryEnergy, Description: "Affordable rooftop solar panels and home energy monitors.", SustainabilityWeight: 2.0, BarcodePrefix: "316"},
	{ID: "ecobrew", Name: "EcoBrew", Category: CategoryLifestyle, Description: "Shade-grown coffee, refillable pods, carbon-neutral roasting.", SustainabilityWeight: 1.4, BarcodePrefix: "890"},
}

// DefaultPromotions is the built-in promotion catalog.
var DefaultPromotions = []Promotion{
	{ID: "promo-terra-1", CompanyID: "terra-foods", Title: "15% Off Organic Basket", Description: "15% off your organic weekly basket at IQ 50+", Type: PromoPercentage, Value: 15, MinIQRequired: 50, ValidFrom: date(2026, 1, 1), ValidUntil: date(2026, 12, 31), MaxRedemptions: 3, Active: true},
	{ID: "promo-greenweave-1", CompanyID: "greenweave", Title: "Free Tote Bag", Description: "A free recycled tote bag at IQ 60+", Type: PromoFreebie, Value: 1, MinIQRequired: 60, ValidFrom: date(2026, 1, 1), ValidUntil: date(2026, 12, 31), MaxRedemptions: 1, Active: true},
	{ID: "promo-voltride-1", CompanyID: "voltride", Title: "Rs.50 E-Bike Credit", Description: "Rs.50 free ride credit at IQ 45+", Type: PromoFlat, Value: 50, MinIQRequired: 45, ValidFrom: date(2026, 1, 1), ValidUntil: date(2026, 12, 31), MaxRedemptions: 5, Active: true},
	{ID: "promo-solarhome-1", CompanyID: "solarhome", Title: "10% Solar Panel Discount", Description: "Sustainability leaders (IQ 75+) get 10% off installations", Type: PromoPercentage, Value: 10, MinIQRequired: 75, ValidFrom: date(2026, 1, 1), ValidUntil: date(2026, 12, 31), MaxRedemptions: 1, Active: true},
	{ID: "promo-ecobrew-1", CompanyID: "ecobrew", Title: "Free Coffee Friday", Description: "A free artisan coffee every Friday at IQ 40+", Type: PromoFreebie, Value: 1, MinIQRequired: 40, ValidFrom: date(2026, 1, 1), ValidUntil: date(2026, 12, 31), MaxRedemptions: 10, Active: true},
	{ID: "promo-terra-2", CompanyID: "terra-foods", Title: "5% Cashback on Veggies", Description: "Progressive tier members (IQ 75+) get 5% cashback on fresh produce", Type: PromoCashback, Value: 5, MinIQRequired: 75, ValidFrom: date(2026, 1, 1), ValidUntil: date(2026, 12, 31), MaxRedemptions: 10, Active: true},
	{ID: "promo-voltride-2", CompanyID: "voltride", Title: "Free Ride Pass (1 Day)", Description: "Vanguard tier (IQ 90+) unlocks a full-day free ride pass", Type: PromoFreebie, Value: 1, MinIQRequired: 90, ValidFrom: date(2026, 1, 1), ValidUntil: date(2026, 12, 31), MaxRedemptions: 2, Active: true},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CouponsFromPromotions derives one coupon per promotion. Coupon codes are
// deterministic so re-derivation is stable across restarts.
func CouponsFromPromotions(promos []Promotion) []Coupon {
	coupons := make([]Coupon, 0, len(promos))
	for _, p := range promos {
		slug := p.CompanyID
		if len(slug) > 4 {
			slug = slug[:4]
		}
		coupons = append(coupons, Coupon{
			ID:            "coupon-" + p.ID,
			PromotionID:   p.ID,
			CompanyID:     p.CompanyID,
			Code:          fmt.Sprintf("LUME-%s-%s", strings.ToUpper(slug), strings.ToUpper(p.ID[len(p.ID)-1:])),
			Title:         p.Title,
			Description:   p.Description,
			DiscountValue: p.Value,
			DiscountType:  p.Type,
			MinIQRequired: p.MinIQRequired,
			ExpiresAt:     p.ValidUntil,
		})
	}
	return coupons
}

// CompanyByID returns the company with the given ID, or nil.
func CompanyByID(companies []Company, id string) *Company {
	for i := range companies {
		if companies[i].ID == id {
			return &companies[i]
		}
	}
	return nil
}

// MatchCompanyByBarcode returns the company whose barcode prefix matches the
// scanned barcode, or nil when no partner claims it.
func MatchCompanyByBarcode(companies []Company, barcode string) *Company {
	for i := range companies {
		prefix := companies[i].BarcodePrefix
		if prefix != "" && strings.HasPrefix(barcode, prefix) {
			return &companies[i]
		}
	}
	return nil
}
