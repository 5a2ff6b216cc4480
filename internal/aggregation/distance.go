// Package aggregation computes consecutive-day counts for noise reports: which reports describe
// the same disturbance, and for how many calendar days in a row it has been reported.
//
// Everything here is pure. Loading reports and persisting counts is the caller's job.
package aggregation

import "math"

const earthRadiusMeters = 6371000.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// HaversineMeters is the great-circle distance between two lat/lng points in meters
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Box is a lat/lng rectangle with MinLng <= MaxLng
type Box struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// BoundingBoxes returns the lat/lng boxes enclosing a circle of radiusMeters around the point.
// A circle crossing the antimeridian yields two boxes, one on each side. They are used as an
// index-friendly prefilter before the exact haversine check.
func BoundingBoxes(lat, lng, radiusMeters float64) []Box {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	minLat, maxLat := math.Max(-90, lat-dLat), math.Min(90, lat+dLat)

	cosLat := math.Cos(toRadians(lat))
	if cosLat <= 1e-9 || dLat/cosLat >= 180 {
		return []Box{{MinLat: minLat, MinLng: -180, MaxLat: maxLat, MaxLng: 180}}
	}
	dLng := dLat / cosLat
	lo, hi := lng-dLng, lng+dLng
	switch {
	case lo < -180:
		return []Box{
			{MinLat: minLat, MinLng: lo + 360, MaxLat: maxLat, MaxLng: 180},
			{MinLat: minLat, MinLng: -180, MaxLat: maxLat, MaxLng: hi},
		}
	case hi > 180:
		return []Box{
			{MinLat: minLat, MinLng: lo, MaxLat: maxLat, MaxLng: 180},
			{MinLat: minLat, MinLng: -180, MaxLat: maxLat, MaxLng: hi - 360},
		}
	}
	return []Box{{MinLat: minLat, MinLng: lo, MaxLat: maxLat, MaxLng: hi}}
}
