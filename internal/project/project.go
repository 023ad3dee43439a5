// Package project turns enriched building records into the public GeoJSON
// feature collection, applying the static raw-to-display column table.
package project

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/bdnb-api/internal/enrich"
	"github.com/sells-group/bdnb-api/internal/model"
)

// Mode selects the public schema of a response.
type Mode string

// Response modes.
const (
	// ModeFull exposes the derived attributes and the full label set.
	ModeFull Mode = "full"
	// ModeBasic exposes the construction year and raw DPE values only.
	ModeBasic Mode = "basic"
)

// ErrUnknownMode is returned by ParseMode for unsupported mode names.
var ErrUnknownMode = eris.New("unknown response mode")

// ParseMode parses a mode name; the empty string selects ModeFull.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeBasic:
		return ModeBasic, nil
	default:
		return "", eris.Wrapf(ErrUnknownMode, "mode %q", s)
	}
}

// Display labels of the full schema.
const (
	LabelAddress           = "Adresse"
	LabelBuildingType      = "Type de batiment"
	LabelConstructionYear  = "Année de construction"
	LabelHabitableSurface  = "Surface habitable (estimée)"
	LabelNumberOfUnits     = "Nombre de logements"
	LabelEnergyLabel       = "Etiquette énergétique (DPE)"
	LabelEnergyConsumption = "Conso énergétique [kWhEP/m².an] (DPE)"
	LabelCarbonLabel       = "Etiquette carbone (DPE)"
	LabelCarbonEstimate    = "Emissions de GES [kgC02eq/m².an] (DPE)"
	LabelEnergyTypes       = "Types d'énergie"
	LabelElectricity       = "Conso électrique [kwhEF/an] (MTEDLE)"
	LabelGas               = "Conso de gaz [kwhEF/an] (MTEDLE)"
	LabelHeatingGenerator  = "Générateurs de chauffage"
	LabelHotWaterGenerator = "Générateurs d'ECS"
)

// Display labels specific to the basic schema.
const (
	LabelBasicEnergyConsumption = "Consommations énergétiques, kWhEP/m².an (DPE)"
	LabelBasicCarbonEstimate    = "Emissions de GES, kgC02eq/m².an (DPE)"
)

// property is one public output column: its display label, the raw columns
// it reads and how its value is derived from a record.
type property struct {
	Label   string
	Sources []model.Column
	Value   func(r model.BuildingRecord) any
}

var fullSchema = []property{
	{LabelAddress, cols(model.ColAddressLabel), street},
	{LabelBuildingType, cols(model.ColBuildingType), func(r model.BuildingRecord) any { return text(r.BuildingType) }},
	{LabelConstructionYear, cols(model.ColConstructionYear), func(r model.BuildingRecord) any { return integer(r.ConstructionYear) }},
	{LabelHabitableSurface, cols(model.ColNumberOfUnits, model.ColHabitableSurface, model.ColBuildingType), func(r model.BuildingRecord) any { return number(enrich.HabitableSurface(r)) }},
	{LabelNumberOfUnits, cols(model.ColNumberOfUnits), func(r model.BuildingRecord) any { return integer(r.NumberOfUnits) }},
	{LabelEnergyLabel, cols(model.ColEnergyLabel), func(r model.BuildingRecord) any { return enrich.NormalizeLabel(r.EnergyLabel) }},
	{LabelEnergyConsumption, cols(model.ColEnergyConsumption), func(r model.BuildingRecord) any { return number(r.EnergyConsumption) }},
	{LabelCarbonLabel, cols(model.ColCarbonLabel), func(r model.BuildingRecord) any { return enrich.NormalizeLabel(r.CarbonLabel) }},
	{LabelCarbonEstimate, cols(model.ColCarbonEstimate), func(r model.BuildingRecord) any { return number(r.CarbonEstimate) }},
	{LabelEnergyTypes, cols(model.ColHeatingEnergyType, model.ColHotWaterEnergyType), energyTypes},
	{LabelElectricity, cols(model.ColElectricityConsumption), func(r model.BuildingRecord) any { return number(r.ElectricityConsumptionTotal) }},
	{LabelGas, cols(model.ColGasConsumption), func(r model.BuildingRecord) any { return number(r.GasConsumptionTotal) }},
	{LabelHeatingGenerator, cols(model.ColHeatingGeneratorLabel), func(r model.BuildingRecord) any { return text(r.HeatingGeneratorLabel) }},
	{LabelHotWaterGenerator, cols(model.ColHotWaterGeneratorLabel), func(r model.BuildingRecord) any { return text(r.HotWaterGeneratorLabel) }},
}

var basicSchema = []property{
	{LabelConstructionYear, cols(model.ColConstructionYear), func(r model.BuildingRecord) any { return integer(r.ConstructionYear) }},
	{LabelEnergyLabel, cols(model.ColEnergyLabel), func(r model.BuildingRecord) any { return text(r.EnergyLabel) }},
	{LabelBasicEnergyConsumption, cols(model.ColEnergyConsumption), func(r model.BuildingRecord) any { return number(r.EnergyConsumption) }},
	{LabelCarbonLabel, cols(model.ColCarbonLabel), func(r model.BuildingRecord) any { return text(r.CarbonLabel) }},
	{LabelBasicCarbonEstimate, cols(model.ColCarbonEstimate), func(r model.BuildingRecord) any { return number(r.CarbonEstimate) }},
}

func cols(c ...model.Column) []model.Column { return c }

func schema(mode Mode) []property {
	if mode == ModeBasic {
		return basicSchema
	}
	return fullSchema
}

// Columns returns the raw columns a store must read to project mode, in a
// stable order without duplicates.
func Columns(mode Mode) []model.Column {
	seen := make(map[model.Column]bool)
	var out []model.Column
	for _, p := range schema(mode) {
		for _, c := range p.Sources {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// View builds the display-named properties of one record. Missing values are
// rendered as enrich.NotAvailable.
func View(r model.BuildingRecord, mode Mode) map[string]any {
	props := schema(mode)
	view := make(map[string]any, len(props))
	for _, p := range props {
		v := p.Value(r)
		if v == nil {
			v = enrich.NotAvailable
		}
		view[p.Label] = v
	}
	return view
}

// Project converts records into a feature collection. Geometries are emitted
// as stored. The result always has a non-nil feature list.
func Project(records []model.BuildingRecord, mode Mode) *geojson.FeatureCollection {
	features := make([]*geojson.Feature, 0, len(records))
	for _, r := range records {
		if r.Geometry == nil {
			continue
		}
		features = append(features, &geojson.Feature{
			Geometry:   r.Geometry,
			Properties: View(r, mode),
		})
	}
	return &geojson.FeatureCollection{Features: features}
}

func street(r model.BuildingRecord) any {
	if r.AddressLabel == nil || *r.AddressLabel == "" {
		return nil
	}
	if s := enrich.ExtractStreet(*r.AddressLabel); s != "" {
		return s
	}
	return nil
}

func energyTypes(r model.BuildingRecord) any {
	return enrich.MergeEnergyType(
		enrich.NormalizeEnergyType(r.HeatingEnergyType),
		enrich.NormalizeEnergyType(r.HotWaterEnergyType),
	)
}

func text(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func integer(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func number(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
