package firedanger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/forest-watch/internal/model"
)

// square builds a polygon ring around the given bounds.
func square(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

func testService() *Service {
	outer := square(150, -34, 152, -32)
	hole := [][]geom.Coord{
		{{150, -34}, {152, -34}, {152, -32}, {150, -32}, {150, -34}},
		{{150.8, -33.2}, {151.2, -33.2}, {151.2, -32.8}, {150.8, -32.8}, {150.8, -33.2}},
	}
	holed := geom.NewPolygon(geom.XY).MustSetCoords(hole)

	return NewService([]District{
		{Name: "Greater Hunter", Code: "GH", Status: "HIGH", StatusText: "High", geometry: outer},
		{Name: "Donut", Code: "DN", Status: "LOW_MODERATE", geometry: holed},
		{Name: "Unrated", Code: "UR", geometry: square(140, -30, 142, -28)},
	})
}

func TestLookupInsideDistrict(t *testing.T) {
	fd := testService().Lookup(&model.Coordinates{Latitude: -33.5, Longitude: 150.5})
	assert.Equal(t, "HIGH", fd.Status)
	assert.Equal(t, "Greater Hunter", fd.AreaName)
	assert.Equal(t, "GH", fd.LookupCode)
	assert.Empty(t, fd.FailureReason)
}

func TestLookupNilCoordinates(t *testing.T) {
	fd := testService().Lookup(nil)
	assert.Equal(t, model.FireDangerUnknown, fd.Status)
	assert.Equal(t, "no coordinates to look up", fd.FailureReason)
}

func TestLookupOutsideAllDistricts(t *testing.T) {
	fd := testService().Lookup(&model.Coordinates{Latitude: 10, Longitude: 10})
	assert.Equal(t, model.FireDangerUnknown, fd.Status)
	assert.Equal(t, "coordinates outside all fire districts", fd.FailureReason)
}

func TestLookupUnratedDistrict(t *testing.T) {
	fd := testService().Lookup(&model.Coordinates{Latitude: -29, Longitude: 141})
	assert.Equal(t, model.FireDangerUnknown, fd.Status)
	assert.Equal(t, "Unrated", fd.AreaName)
	assert.Equal(t, "district has no published rating", fd.FailureReason)
}

func TestPolygonHoleExcluded(t *testing.T) {
	svc := NewService([]District{
		{Name: "Donut", Status: "LOW_MODERATE", geometry: geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
			{{150, -34}, {152, -34}, {152, -32}, {150, -32}, {150, -34}},
			{{150.8, -33.2}, {151.2, -33.2}, {151.2, -32.8}, {150.8, -32.8}, {150.8, -33.2}},
		})},
	})

	inside := svc.Lookup(&model.Coordinates{Latitude: -33.5, Longitude: 150.2})
	assert.Equal(t, "LOW_MODERATE", inside.Status)

	inHole := svc.Lookup(&model.Coordinates{Latitude: -33.0, Longitude: 151.0})
	assert.Equal(t, model.FireDangerUnknown, inHole.Status)
}

func TestMultiPolygonContainment(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	_ = mp.Push(square(150, -34, 151, -33))
	_ = mp.Push(square(152, -31, 153, -30))

	svc := NewService([]District{{Name: "Split", Status: "HIGH", geometry: mp}})

	assert.Equal(t, "HIGH", svc.Lookup(&model.Coordinates{Latitude: -33.5, Longitude: 150.5}).Status)
	assert.Equal(t, "HIGH", svc.Lookup(&model.Coordinates{Latitude: -30.5, Longitude: 152.5}).Status)
	assert.Equal(t, model.FireDangerUnknown,
		svc.Lookup(&model.Coordinates{Latitude: -32, Longitude: 151.5}).Status)
}
