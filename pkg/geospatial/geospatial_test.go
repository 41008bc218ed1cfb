package geospatial

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roughly a 100m x 100m square near Kumasi
const squareFeature = `{
	"type": "Feature",
	"properties": {},
	"geometry": {
		"type": "Polygon",
		"coordinates": [[[-1.6000, 6.7000], [-1.5991, 6.7000], [-1.5991, 6.7009], [-1.6000, 6.7009], [-1.6000, 6.7000]]]
	}
}`

const squareGeometry = `{
	"type": "Polygon",
	"coordinates": [[[-1.6000, 6.7000], [-1.5991, 6.7000], [-1.5991, 6.7009], [-1.6000, 6.7009], [-1.6000, 6.7000]]]
}`

func TestBoundaryAcres(t *testing.T) {
	acres, err := BoundaryAcres([]byte(squareFeature))
	require.NoError(t, err)
	// 0.0009 degrees is ~100m, so ~1 hectare or ~2.47 acres
	assert.InDelta(t, 2.47, acres, 0.15)

	fromGeometry, err := BoundaryAcres([]byte(squareGeometry))
	require.NoError(t, err)
	assert.InDelta(t, acres, fromGeometry, 0.0001)
}

func TestParseBoundaryRejectsPoints(t *testing.T) {
	_, err := ParseBoundary([]byte(`{"type":"Point","coordinates":[-1.6,6.7]}`))
	assert.True(t, errors.Is(err, ErrNoArea))
}

func TestParseBoundaryRejectsGarbage(t *testing.T) {
	_, err := ParseBoundary([]byte(`not json`))
	assert.Error(t, err)
}

func TestCentroid(t *testing.T) {
	geometry, err := ParseBoundary([]byte(squareGeometry))
	require.NoError(t, err)
	c := CalculateCentroid(geometry)
	assert.InDelta(t, -1.59955, c.Lon(), 0.0001)
	assert.InDelta(t, 6.70045, c.Lat(), 0.0001)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]byte(squareGeometry))
	require.NoError(t, err)
	acres, err := BoundaryAcres([]byte(squareGeometry))
	require.NoError(t, err)
	assert.InDelta(t, acres, s.Acres, 1e-9)
	assert.InDelta(t, -1.59955, s.Centroid.Lon(), 0.0001)

	_, err = Summarize([]byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.ErrorIs(t, err, ErrNoArea)
}
