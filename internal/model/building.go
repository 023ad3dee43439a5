// Package model defines the building record and query extent types shared by
// the store, enrichment and projection layers.
package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrInvalidBBox is returned for non-finite or inverted bounding boxes.
var ErrInvalidBBox = eris.New("invalid bbox")

// BuildingRecord is one building (or dwelling group) read from the store.
// Nil attribute pointers mean the value is missing in the source, which is
// distinct from an empty string.
type BuildingRecord struct {
	Geometry geom.T

	AddressLabel                *string
	BuildingType                *string
	ConstructionYear            *int
	NumberOfUnits               *int
	HabitableSurfacePerUnit     *float64
	HeatingEnergyType           *string
	HotWaterEnergyType          *string
	EnergyLabel                 *string
	EnergyConsumption           *float64
	CarbonLabel                 *string
	CarbonEstimate              *float64
	ElectricityConsumptionTotal *float64
	GasConsumptionTotal         *float64
	HeatingGeneratorLabel       *string
	HotWaterGeneratorLabel      *string
}

// Set assigns a raw driver value to the field backing column c. Nil values
// leave the field missing. Values that cannot be converted to the column's
// kind are treated as missing so a single malformed cell never fails a query.
func (r *BuildingRecord) Set(c Column, v any) error {
	kind, ok := KindOf(c)
	if !ok {
		return eris.Errorf("model: unknown column %q", c)
	}
	if v == nil {
		return nil
	}

	switch kind {
	case KindText:
		s, ok := asText(v)
		if !ok {
			return nil
		}
		r.setText(c, s)
	case KindInt:
		f, ok := asFloat(v)
		if !ok || f < 0 {
			return nil
		}
		n := int(math.Round(f))
		r.setInt(c, n)
	case KindFloat:
		f, ok := asFloat(v)
		if !ok {
			return nil
		}
		r.setFloat(c, f)
	}
	return nil
}

func (r *BuildingRecord) setText(c Column, s string) {
	switch c {
	case ColAddressLabel:
		r.AddressLabel = &s
	case ColBuildingType:
		r.BuildingType = &s
	case ColHeatingEnergyType:
		r.HeatingEnergyType = &s
	case ColHotWaterEnergyType:
		r.HotWaterEnergyType = &s
	case ColEnergyLabel:
		r.EnergyLabel = &s
	case ColCarbonLabel:
		r.CarbonLabel = &s
	case ColHeatingGeneratorLabel:
		r.HeatingGeneratorLabel = &s
	case ColHotWaterGeneratorLabel:
		r.HotWaterGeneratorLabel = &s
	}
}

func (r *BuildingRecord) setInt(c Column, n int) {
	switch c {
	case ColConstructionYear:
		r.ConstructionYear = &n
	case ColNumberOfUnits:
		r.NumberOfUnits = &n
	}
}

func (r *BuildingRecord) setFloat(c Column, f float64) {
	switch c {
	case ColHabitableSurface:
		r.HabitableSurfacePerUnit = &f
	case ColEnergyConsumption:
		r.EnergyConsumption = &f
	case ColCarbonEstimate:
		r.CarbonEstimate = &f
	case ColElectricityConsumption:
		r.ElectricityConsumptionTotal = &f
	case ColGasConsumption:
		r.GasConsumptionTotal = &f
	}
}

func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case int:
		f = float64(t)
	case []byte:
		return asFloat(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// BBox is an axis-aligned extent in the store's native CRS (EPSG:2154).
type BBox struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// Validate checks that every bound is finite and that min <= max on both axes.
func (b BBox) Validate() error {
	for _, v := range []float64{b.XMin, b.XMax, b.YMin, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrap(ErrInvalidBBox, "bounds must be finite")
		}
	}
	if b.XMin > b.XMax {
		return eris.Wrapf(ErrInvalidBBox, "xmin %g greater than xmax %g", b.XMin, b.XMax)
	}
	if b.YMin > b.YMax {
		return eris.Wrapf(ErrInvalidBBox, "ymin %g greater than ymax %g", b.YMin, b.YMax)
	}
	return nil
}

// Bounds returns the box as go-geom bounds.
func (b BBox) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Intersects reports whether the envelope of g touches or overlaps the box.
func (b BBox) Intersects(g geom.T) bool {
	if g == nil {
		return false
	}
	return b.Bounds().Overlaps(geom.XY, g.Bounds())
}
