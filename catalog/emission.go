package catalog

// TransportMode identifies one transport option in a route comparison.
type TransportMode string

const (
	ModeCar   TransportMode = "car"
	ModeBike  TransportMode = "bike" // e-bike / motorbike
	ModeMetro TransportMode = "metro"
	ModeBus   TransportMode = "bus"
	ModeWalk  TransportMode = "walk"
	ModeCycle TransportMode = "cycle"
)

// TransportModes lists every mode considered for a route, car baseline first.
var TransportModes = []TransportMode{ModeCar, ModeBike, ModeMetro, ModeBus, ModeCycle, ModeWalk}

// EmissionFactors are grams CO2 per passenger-kilometer.
var EmissionFactors = map[TransportMode]float64{
	ModeCar:   120,
	ModeBike:  80,
	ModeMetro: 35,
	ModeBus:   50,
	ModeWalk:  0,
	ModeCycle: 0,
}

// SpeedEstimates are average urban speeds in km/h, used for crude duration
// estimates. Bus and metro include stop/wait time.
var SpeedEstimates = map[TransportMode]float64{
	ModeCar:   30,
	ModeBike:  25,
	ModeMetro: 35,
	ModeBus:   20,
	ModeWalk:  5,
	ModeCycle: 15,
}

// ModeLabels are display names for each transport mode.
var ModeLabels = map[TransportMode]string{
	ModeCar:   "Car (Baseline)",
	ModeBike:  "E-Bike / Motorbike",
	ModeMetro: "Metro / Train",
	ModeBus:   "Public Bus",
	ModeWalk:  "Walking",
	ModeCycle: "Bicycle",
}

// Practicality limits for human-powered modes.
const (
	// MaxWalkDistanceKm excludes walking from comparisons beyond this distance
	MaxWalkDistanceKm = 5.0

	// MaxCycleDistanceKm excludes cycling from comparisons beyond this distance
	MaxCycleDistanceKm = 15.0
)

// CarbonConversionFactor converts grams of CO2 saved into Impact IQ bonus
// points.
const CarbonConversionFactor = 0.005

// IsKnownMode reports whether mode has an emission factor.
func IsKnownMode(mode TransportMode) bool {
	_, ok := EmissionFactors[mode]
	return ok
}

// IsPractical reports whether mode is a realistic option over distanceKm.
func IsPractical(mode TransportMode, distanceKm float64) bool {
	switch mode {
	case ModeWalk:
		return distanceKm <= MaxWalkDistanceKm
	case ModeCycle:
		return distanceKm <= MaxCycleDistanceKm
	}
	return true
}
