package geo

import (
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// kmPerDegreeLat is the approximate north-south distance of one degree of latitude.
const kmPerDegreeLat = 111.32

// IsValidCoordinate reports whether lat/lon form a usable position.
// (0,0) is rejected because upstream feeds use it as a sentinel for "unknown".
func IsValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return true
}

// DistanceKm returns the haversine great-circle distance in kilometers.
// Returns +Inf if either point is invalid, so scoring callers never need
// error handling in the hot path.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if !IsValidCoordinate(lat1, lon1) || !IsValidCoordinate(lat2, lon2) {
		return math.Inf(1)
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// TimeDeltaHours returns the absolute difference between two timestamps in
// hours, or +Inf when either timestamp is missing.
func TimeDeltaHours(t1, t2 *time.Time) float64 {
	if t1 == nil || t2 == nil || t1.IsZero() || t2.IsZero() {
		return math.Inf(1)
	}
	return math.Abs(t1.Sub(*t2).Hours())
}

// TimeProximity returns a linear-decay proximity score in [0,1].
// 1 means identical timestamps, 0 means at or beyond maxHours apart.
func TimeProximity(t1, t2 *time.Time, maxHours float64) float64 {
	if maxHours <= 0 {
		return 0
	}
	delta := TimeDeltaHours(t1, t2)
	if math.IsInf(delta, 1) {
		return 0
	}
	return math.Max(0, 1-delta/maxHours)
}

// SpatialProximity returns a linear-decay proximity score in [0,1].
// 1 means identical positions, 0 means at or beyond maxKm apart.
func SpatialProximity(lat1, lon1, lat2, lon2, maxKm float64) float64 {
	if maxKm <= 0 {
		return 0
	}
	dist := DistanceKm(lat1, lon1, lat2, lon2)
	if math.IsInf(dist, 1) {
		return 0
	}
	return math.Max(0, 1-dist/maxKm)
}

// BoundingBox returns the lat/lon bounds of a square of radiusKm around a
// point, using latitude-adjusted longitude scaling. Longitude bounds widen
// toward the poles; latitudes above ~89 degrees fall back to the full range.
func BoundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := radiusKm / kmPerDegreeLat

	cosLat := math.Cos(lat * math.Pi / 180)
	var dLon float64
	if cosLat < 0.01 {
		dLon = 180
	} else {
		dLon = radiusKm / (kmPerDegreeLat * cosLat)
	}

	minLat = math.Max(-90, lat-dLat)
	maxLat = math.Min(90, lat+dLat)
	minLon = math.Max(-180, lon-dLon)
	maxLon = math.Min(180, lon+dLon)
	return minLat, maxLat, minLon, maxLon
}
