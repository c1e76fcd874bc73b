package ttnotes

import (
	"github.com/golang/geo/s2"
	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

const earthRadiusMeters = 6371000.0

// Bounds is the lat/lng box covering every GPS fix of an activity.
type Bounds struct {
	MinLatitude  float64 `json:"min_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
	CenterLat    float64 `json:"center_latitude"`
	CenterLng    float64 `json:"center_longitude"`
}

// haversineDistance returns the great-circle distance between two fixes in meters.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// trackDistance sums the great-circle legs between consecutive fixes, skipping
// points without a position.
func trackDistance(points []*ttbin.TrackPoint) float64 {
	total := 0.0
	var prev *ttbin.TrackPoint
	for _, p := range points {
		if !p.HasPosition() {
			continue
		}
		if prev != nil {
			total += haversineDistance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		}
		prev = p
	}
	return total
}

func trackBounds(points []*ttbin.TrackPoint) *Bounds {
	rect := s2.EmptyRect()
	for _, p := range points {
		if !p.HasPosition() {
			continue
		}
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Latitude, p.Longitude))
	}
	if rect.IsEmpty() {
		return nil
	}
	lo, hi, center := rect.Lo(), rect.Hi(), rect.Center()
	return &Bounds{
		MinLatitude:  lo.Lat.Degrees(),
		MinLongitude: lo.Lng.Degrees(),
		MaxLatitude:  hi.Lat.Degrees(),
		MaxLongitude: hi.Lng.Degrees(),
		CenterLat:    center.Lat.Degrees(),
		CenterLng:    center.Lng.Degrees(),
	}
}
