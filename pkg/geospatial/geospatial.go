package geospatial

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

var ErrInvalidCoordinates = errors.New("coordinates out of range")

// Point builds an orb point from latitude and longitude. orb stores
// points as [lon, lat].
func Point(lat, lon float64) (orb.Point, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, ErrInvalidCoordinates
	}
	return orb.Point{lon, lat}, nil
}

// SiteFeature wraps a site location into a GeoJSON point feature
func SiteFeature(id string, lat, lon float64, properties map[string]interface{}) (*geojson.Feature, error) {
	pt, err := Point(lat, lon)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(pt)
	f.ID = id
	for k, v := range properties {
		f.Properties[k] = v
	}
	return f, nil
}

// Collection builds a feature collection with a bounding box over all features
func Collection(features []*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(features) == 0 {
		return fc
	}
	points := make(orb.MultiPoint, 0, len(features))
	for _, f := range features {
		fc.Append(f)
		if pt, ok := f.Geometry.(orb.Point); ok {
			points = append(points, pt)
		}
	}
	if len(points) > 0 {
		fc.BBox = geojson.NewBBox(points.Bound())
	}
	return fc
}

// DistanceKm returns the great-circle distance between two points
func DistanceKm(a, b orb.Point) float64 {
	return geo.Distance(a, b) / 1000
}
