package weather

import "strings"

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Record is a single resolved weather observation for a named location.
// Caches hand out clones, so mutating a returned Record never reaches the stored one.
type Record struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	Main       Main         `json:"main"`
	Conditions []Descriptor `json:"weather"`
	Wind       Wind         `json:"wind"`
	Coord      Coordinates  `json:"coord"`
}

// Main groups the thermodynamic readings.
type Main struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure"`
	Humidity  float64 `json:"humidity"`
}

// Descriptor is one entry of the ordered condition list reported upstream.
type Descriptor struct {
	Code        int       `json:"id"`
	Label       string    `json:"main"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Kind        Condition `json:"kind"`
}

// Wind groups wind speed and direction (degrees).
type Wind struct {
	Speed     float64 `json:"speed"`
	Direction float64 `json:"deg"`
}

// Coordinates are only meaningful when Known is set; a zero Lat/Lon
// pair without it means the upstream did not report a position.
type Coordinates struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Known bool    `json:"known"`
}

// PrimaryCondition returns the first descriptor, or an unknown one when the list is empty.
func (r Record) PrimaryCondition() Descriptor {
	if len(r.Conditions) == 0 {
		return Descriptor{Kind: ConditionUnknown}
	}
	return r.Conditions[0]
}

// Clone returns a copy of r that shares no slices with it.
func (r Record) Clone() Record {
	if r.Conditions != nil {
		r.Conditions = append([]Descriptor(nil), r.Conditions...)
	}
	return r
}

// NormalizeKey returns the canonical cache key for a location name.
func NormalizeKey(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
