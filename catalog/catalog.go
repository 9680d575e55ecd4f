// Package catalog holds the static lookup tables the LumeIQ engines read:
// tier brackets and growth constants, ring weights, baseline questionnaire
// impact tables, impact modes, transport emission factors, and the partner
// company / promotion / coupon catalog. The tables are public constants so
// anyone can verify exactly how scores and rewards are computed.
package catalog

import (
	"github.com/lumeiq/core/types"
)

// TierDefinition is one inclusive [Min,Max] Impact IQ bracket.
type TierDefinition struct {
	Tier  types.TierLevel `json:"tier"`
	Min   float64         `json:"min"`
	Max   float64         `json:"max"`
	Label string          `json:"label"`
}

// TierDefinitions lists the five brackets in ascending order. Brackets are
// contiguous and non-overlapping over [0,100].
var TierDefinitions = []TierDefinition{
	{Tier: types.TierFoundation, Min: 0, Max: 39, Label: "Foundation"},
	{Tier: types.TierAware, Min: 40, Max: 59, Label: "Aware"},
	{Tier: types.TierAligned, Min: 60, Max: 74, Label: "Aligned"},
	{Tier: types.TierProgressive, Min: 75, Max: 89, Label: "Progressive"},
	{Tier: types.TierVanguard, Min: 90, Max: 100, Label: "Vanguard"},
}

// TierGrowthRates maps each tier to its saturating-growth constant k.
// Lower tiers grow faster per unit of effort so early gains come easy and
// later gains come hard.
var TierGrowthRates = map[types.TierLevel]float64{
	types.TierFoundation:  0.12,
	types.TierAware:       0.07,
	types.TierAligned:     0.035,
	types.TierProgressive: 0.035,
	types.TierVanguard:    0.035,
}

// RingWeights are the blend weights of the three rings in the Blended
// Progress Index.
var RingWeights = map[types.Ring]float64{
	types.RingCircularity: 0.35,
	types.RingConsumption: 0.35,
	types.RingMobility:    0.30,
}

// BaselineImpact is one questionnaire answer and its signed IQ contribution.
type BaselineImpact struct {
	Value  string  `json:"value" yaml:"value"`
	Label  string  `json:"label" yaml:"label"`
	Impact float64 `json:"impact" yaml:"impact"`
}

// CommuteTypes maps onboarding commute answers to impact points.
var CommuteTypes = []BaselineImpact{
	{Value: "car", Label: "Personal Car", Impact: -20},
	{Value: "hybrid", Label: "Hybrid Vehicle", Impact: -10},
	{Value: "electric", Label: "Electric Vehicle", Impact: 0},
	{Value: "public", Label: "Public Transit", Impact: 15},
	{Value: "bike", Label: "Bicycle", Impact: 25},
	{Value: "walk", Label: "Walking", Impact: 30},
}

// DietTypes maps onboarding diet answers to impact points.
var DietTypes = []BaselineImpact{
	{Value: "meat-heavy", Label: "Meat Heavy", Impact: -20},
	{Value: "average", Label: "Average Diet", Impact: 0},
	{Value: "vegetarian", Label: "Vegetarian", Impact: 15},
	{Value: "vegan", Label: "Vegan", Impact: 25},
	{Value: "flexitarian", Label: "Flexitarian", Impact: 10},
}

// ClothingFrequencies maps onboarding clothing answers to impact points.
var ClothingFrequencies = []BaselineImpact{
	{Value: "fast-fashion", Label: "Fast Fashion", Impact: -15},
	{Value: "average", Label: "Average Consumer", Impact: 0},
	{Value: "conscious", Label: "Conscious Buyer", Impact: 10},
	{Value: "minimalist", Label: "Minimalist", Impact: 20},
	{Value: "secondhand", Label: "Secondhand Only", Impact: 25},
}

// ImpactOf returns the impact points for an answer value, or 0 when the
// answer is unknown.
func ImpactOf(table []BaselineImpact, value string) float64 {
	for _, entry := range table {
		if entry.Value == value {
			return entry.Impact
		}
	}
	return 0
}

// ImpactMode is a manually activated eco-behavior affecting one ring.
type ImpactMode struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Ring        types.Ring `json:"ring" yaml:"ring"`
	BasePoints  float64    `json:"base_points" yaml:"base_points"`
	Multiplier  float64    `json:"multiplier" yaml:"multiplier"`
}

// ImpactModes lists the built-in activatable modes.
var ImpactModes = []ImpactMode{
	{ID: "plant-based", Name: "Plant-Based Day", Description: "No meat consumption today", Ring: types.RingConsumption, BasePoints: 25, Multiplier: 1.2},
	{ID: "transit", Name: "Transit Day", Description: "Public transport only", Ring: types.RingMobility, BasePoints: 25, Multiplier: 1.3},
	{ID: "thrift", Name: "Thrift Hunt", Description: "Second-hand shopping", Ring: types.RingCircularity, BasePoints: 30, Multiplier: 1.15},
	{ID: "repair", Name: "Repair Session", Description: "Fixed instead of replaced", Ring: types.RingCircularity, BasePoints: 35, Multiplier: 1.25},
	{ID: "minimal", Name: "Minimal Mode", Description: "Reduced consumption overall", Ring: types.RingCircularity, BasePoints: 10, Multiplier: 1.5},
}

// ImpactModeByID returns the mode with the given ID, or nil when unknown.
func ImpactModeByID(id string) *ImpactMode {
	for i := range ImpactModes {
		if ImpactModes[i].ID == id {
			return &ImpactModes[i]
		}
	}
	return nil
}
