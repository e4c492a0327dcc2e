package geospatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoint(t *testing.T) {
	pt, err := Point(20.5235, -100.8157)
	require.NoError(t, err)
	assert.Equal(t, -100.8157, pt.Lon())
	assert.Equal(t, 20.5235, pt.Lat())

	_, err = Point(91, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	_, err = Point(0, -181)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestCollection(t *testing.T) {
	a, err := SiteFeature("a", 20.43, -101.72, map[string]interface{}{"status": "Available"})
	require.NoError(t, err)
	b, err := SiteFeature("b", 25.1872, -99.8251, nil)
	require.NoError(t, err)

	fc := Collection([]*geojson.Feature{a, b})
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "a", fc.Features[0].ID)
	assert.Equal(t, "Available", fc.Features[0].Properties["status"])
	assert.Equal(t, orb.Point{-101.72, 20.43}, fc.Features[0].Geometry)

	bound := fc.BBox.Bound()
	assert.Equal(t, orb.Point{-101.72, 20.43}, bound.Min)
	assert.Equal(t, orb.Point{-99.8251, 25.1872}, bound.Max)
}

func TestCollection_Empty(t *testing.T) {
	fc := Collection(nil)
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)
}

func TestDistanceKm(t *testing.T) {
	a, _ := Point(20.5235, -100.8157)
	b, _ := Point(20.4300, -101.7200)
	d := DistanceKm(a, b)
	assert.InDelta(t, 95, d, 5)
	assert.Zero(t, DistanceKm(a, a))
}
