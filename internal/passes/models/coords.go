package models

import (
	"math"

	dErrors "mountpass/pkg/domain-errors"
)

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
	MinHeight    = 0
	MaxHeight    = 9000
)

// Coords is the geographic position of a pass. Height is in metres.
type Coords struct {
	ID        int64
	Latitude  float64
	Longitude float64
	Height    int
}

// NewCoords validates ranges and reports every offending field.
func NewCoords(lat, lon float64, height int) (*Coords, error) {
	fields := dErrors.FieldErrors{}
	if math.IsNaN(lat) || lat < MinLatitude || lat > MaxLatitude {
		fields.Add("latitude", "ensure this value is between -90 and 90")
	}
	if math.IsNaN(lon) || lon < MinLongitude || lon > MaxLongitude {
		fields.Add("longitude", "ensure this value is between -180 and 180")
	}
	if height < MinHeight || height > MaxHeight {
		fields.Add("height", "ensure this value is between 0 and 9000")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}
	return &Coords{Latitude: lat, Longitude: lon, Height: height}, nil
}

// CoordsPatch updates only the components that are set.
type CoordsPatch struct {
	Latitude  *float64
	Longitude *float64
	Height    *int
}

// Patched returns a validated copy of c with the patch applied.
func (c Coords) Patched(p CoordsPatch) (*Coords, error) {
	lat, lon, height := c.Latitude, c.Longitude, c.Height
	if p.Latitude != nil {
		lat = *p.Latitude
	}
	if p.Longitude != nil {
		lon = *p.Longitude
	}
	if p.Height != nil {
		height = *p.Height
	}
	next, err := NewCoords(lat, lon, height)
	if err != nil {
		return nil, err
	}
	next.ID = c.ID
	return next, nil
}
