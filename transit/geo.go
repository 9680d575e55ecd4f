package transit

import (
	"math"

	"github.com/uber/h3-go/v4"

	"github.com/lumeiq/core/types"
)

// GeoResolution is H3 resolution 9 (~0.1 km² per hexagon), fine enough that
// snapping trip endpoints to cell centers shifts distances by well under a
// city block.
const GeoResolution = 9

// CityRoadFactor inflates great-circle distance toward realistic road
// distance for urban trips.
const CityRoadFactor = 1.3

// CellOf returns the H3 cell ID covering a coordinate.
func CellOf(coord types.LatLng) string {
	cell := h3.LatLngToCell(h3.NewLatLng(coord.Lat, coord.Lng), GeoResolution)
	return cell.String()
}

// SameCell reports whether two coordinates snap to the same H3 cell.
func SameCell(a, b types.LatLng) bool {
	return CellOf(a) == CellOf(b)
}

// RouteDistanceKm estimates the road distance between two coordinates.
// Endpoints are snapped to H3 cell centers so repeated queries from nearby
// points produce stable distances, then the haversine distance is scaled by
// the road factor.
func RouteDistanceKm(start, end types.LatLng) float64 {
	a := h3.LatLngToCell(h3.NewLatLng(start.Lat, start.Lng), GeoResolution).LatLng()
	b := h3.LatLngToCell(h3.NewLatLng(end.Lat, end.Lng), GeoResolution).LatLng()

	km := haversineMeters(a.Lat, a.Lng, b.Lat, b.Lng) / 1000 * CityRoadFactor
	return math.Round(km*10) / 10
}

// haversineMeters calculates the great-circle distance between two points.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000 // meters

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
