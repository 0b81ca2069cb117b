// Package firedanger resolves a fire-danger rating for a coordinate by
// locating it inside a district polygon from the ratings feed.
package firedanger

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/forest-watch/internal/model"
)

// District is one fire-danger district: a rated administrative polygon.
type District struct {
	Name       string
	Code       string
	Status     string
	StatusText string
	geometry   geom.T
}

// Service answers point lookups over a loaded district set.
type Service struct {
	districts []District
}

// NewService creates a lookup service over the given districts.
func NewService(districts []District) *Service {
	return &Service{districts: districts}
}

// Districts returns the loaded district set.
func (s *Service) Districts() []District { return s.districts }

// Lookup resolves the fire-danger rating for the given coordinates. Absence
// of a containing district is data, not an error: the result carries status
// UNKNOWN with a failure reason.
func (s *Service) Lookup(coords *model.Coordinates) model.FireDanger {
	if coords == nil {
		return model.FireDanger{
			Status:        model.FireDangerUnknown,
			FailureReason: "no coordinates to look up",
		}
	}

	for i := range s.districts {
		d := &s.districts[i]
		if !containsPoint(d.geometry, coords.Longitude, coords.Latitude) {
			continue
		}
		if d.Status == "" {
			return model.FireDanger{
				Status:        model.FireDangerUnknown,
				AreaName:      d.Name,
				LookupCode:    d.Code,
				FailureReason: "district has no published rating",
			}
		}
		return model.FireDanger{
			Status:     d.Status,
			StatusText: d.StatusText,
			AreaName:   d.Name,
			LookupCode: d.Code,
		}
	}

	return model.FireDanger{
		Status:        model.FireDangerUnknown,
		FailureReason: "coordinates outside all fire districts",
	}
}

func isPolygonal(g geom.T) bool {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return true
	default:
		return false
	}
}

// containsPoint tests polygon or multi-polygon containment, holes included.
func containsPoint(g geom.T, x, y float64) bool {
	switch geometry := g.(type) {
	case *geom.Polygon:
		return polygonContains(geometry, x, y)
	case *geom.MultiPolygon:
		for i := 0; i < geometry.NumPolygons(); i++ {
			if polygonContains(geometry.Polygon(i), x, y) {
				return true
			}
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, x, y float64) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !ringContains(p.LinearRing(0), x, y) {
		return false
	}
	// Interior rings are holes.
	for i := 1; i < p.NumLinearRings(); i++ {
		if ringContains(p.LinearRing(i), x, y) {
			return false
		}
	}
	return true
}

// ringContains is an even-odd ray cast over the ring's coordinates.
func ringContains(ring *geom.LinearRing, x, y float64) bool {
	coords := ring.Coords()
	inside := false
	n := len(coords)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := coords[i].X(), coords[i].Y()
		xj, yj := coords[j].X(), coords[j].Y()
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
