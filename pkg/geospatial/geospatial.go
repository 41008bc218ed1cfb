package geospatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

const squareMetersPerAcre = 4046.8564224

// ErrNoArea is returned for geometries that cannot describe a farm boundary
var ErrNoArea = errors.New("geometry does not enclose an area")

// ParseBoundary accepts a GeoJSON Feature or bare Geometry and returns a Polygon or MultiPolygon
func ParseBoundary(raw []byte) (orb.Geometry, error) {
	var geometry orb.Geometry

	if feature, err := geojson.UnmarshalFeature(raw); err == nil && feature.Geometry != nil {
		geometry = feature.Geometry
	} else {
		g, gerr := geojson.UnmarshalGeometry(raw)
		if gerr != nil {
			return nil, fmt.Errorf("invalid GeoJSON: %w", gerr)
		}
		geometry = g.Geometry()
	}

	switch geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return geometry, nil
	default:
		return nil, ErrNoArea
	}
}

// CalculateArea returns the geodesic area of a geometry in square meters
func CalculateArea(geometry orb.Geometry) float64 {
	return geo.Area(geometry)
}

// CalculateCentroid returns the area-weighted centroid of a geometry in lon/lat
func CalculateCentroid(geometry orb.Geometry) orb.Point {
	centroid, _ := planar.CentroidArea(geometry)
	return centroid
}

// ConvertToAcres converts square meters to acres
func ConvertToAcres(sqMeters float64) float64 {
	return sqMeters / squareMetersPerAcre
}

// Summary describes a parsed farm boundary
type Summary struct {
	Acres    float64
	Centroid orb.Point
}

// Summarize parses a boundary and returns its size and centre
func Summarize(raw []byte) (*Summary, error) {
	geometry, err := ParseBoundary(raw)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Acres:    ConvertToAcres(CalculateArea(geometry)),
		Centroid: CalculateCentroid(geometry),
	}, nil
}

// BoundaryAcres parses a boundary and returns its size in acres
func BoundaryAcres(raw []byte) (float64, error) {
	geometry, err := ParseBoundary(raw)
	if err != nil {
		return 0, err
	}
	return ConvertToAcres(CalculateArea(geometry)), nil
}
