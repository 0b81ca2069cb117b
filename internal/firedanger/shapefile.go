package firedanger

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// LoadShapefile reads district boundaries from a local shapefile, the offline
// alternative to the GeoJSON feed. Shapefiles carry no ratings, so loaded
// districts report UNKNOWN until a feed refresh supplies one; nameField and
// codeField name the DBF attributes to read.
func LoadShapefile(path, nameField, codeField string) ([]District, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "firedanger: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx, codeIdx := -1, -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(f.String(), nameField) {
			nameIdx = i
		} else if strings.EqualFold(f.String(), codeField) {
			codeIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("firedanger: shapefile has no %q field", nameField)
	}

	var districts []District
	for reader.Next() {
		_, shape := reader.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		d := District{
			Name:     strings.TrimSpace(reader.Attribute(nameIdx)),
			geometry: shpPolygonToGeom(polygon),
		}
		if codeIdx >= 0 {
			d.Code = strings.TrimSpace(reader.Attribute(codeIdx))
		}
		districts = append(districts, d)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "firedanger: read shapefile")
	}
	return districts, nil
}

// shpPolygonToGeom converts a shapefile polygon's part-indexed point list
// into a go-geom polygon, one linear ring per part.
func shpPolygonToGeom(p *shp.Polygon) *geom.Polygon {
	polygon := geom.NewPolygon(geom.XY)
	numParts := len(p.Parts)
	for part := 0; part < numParts; part++ {
		start := int(p.Parts[part])
		end := len(p.Points)
		if part+1 < numParts {
			end = int(p.Parts[part+1])
		}
		coords := make([]geom.Coord, 0, end-start)
		for _, pt := range p.Points[start:end] {
			coords = append(coords, geom.Coord{pt.X, pt.Y})
		}
		if len(coords) >= 3 {
			polygon.Push(geom.NewLinearRing(geom.XY).MustSetCoords(coords))
		}
	}
	return polygon
}
