package project

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/bdnb-api/internal/enrich"
	"github.com/sells-group/bdnb-api/internal/model"
)

func ptr[T any](v T) *T { return &v }

func footprint() *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		652000, 6862000, 652010, 6862000, 652010, 6862010, 652000, 6862010, 652000, 6862000,
	}, []int{10})
}

func fullRecord() model.BuildingRecord {
	return model.BuildingRecord{
		Geometry:                    footprint(),
		AddressLabel:                ptr("12 Rue Example 75010 Paris"),
		BuildingType:                ptr("Maison individuelle"),
		ConstructionYear:            ptr(1931),
		NumberOfUnits:               ptr(2),
		HabitableSurfacePerUnit:     ptr(65.0),
		HeatingEnergyType:           ptr("Gaz"),
		HotWaterEnergyType:          ptr("Gaz + Bois"),
		EnergyLabel:                 ptr("D"),
		EnergyConsumption:           ptr(212.4),
		CarbonLabel:                 ptr("N"),
		CarbonEstimate:              ptr(41.0),
		ElectricityConsumptionTotal: ptr(3200.0),
		HeatingGeneratorLabel:       ptr("Chaudière gaz"),
		HotWaterGeneratorLabel:      ptr(""),
	}
}

// labels returns the display labels of mode in schema order.
func labels(mode Mode) []string {
	props := schema(mode)
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Label
	}
	return out
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)

	m, err = ParseMode(" Basic ")
	require.NoError(t, err)
	assert.Equal(t, ModeBasic, m)

	_, err = ParseMode("compact")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown response mode")
}

func TestView_Full(t *testing.T) {
	view := View(fullRecord(), ModeFull)

	assert.Len(t, view, 14)
	assert.Equal(t, "12 Rue Example", view[LabelAddress])
	assert.Equal(t, "Maison individuelle", view[LabelBuildingType])
	assert.Equal(t, 1931, view[LabelConstructionYear])
	assert.InDelta(t, 130.0, view[LabelHabitableSurface], 1e-9)
	assert.Equal(t, 2, view[LabelNumberOfUnits])
	assert.Equal(t, "D", view[LabelEnergyLabel])
	assert.InDelta(t, 212.4, view[LabelEnergyConsumption], 1e-9)
	assert.Equal(t, enrich.NotAvailable, view[LabelCarbonLabel], "N is remapped")
	assert.ElementsMatch(t, []string{"Gaz", "Bois"}, enrich.SplitEnergyType(view[LabelEnergyTypes].(string)))
	assert.InDelta(t, 3200.0, view[LabelElectricity], 1e-9)
	assert.Equal(t, enrich.NotAvailable, view[LabelGas], "missing number")
	assert.Equal(t, "Chaudière gaz", view[LabelHeatingGenerator])
	assert.Equal(t, enrich.NotAvailable, view[LabelHotWaterGenerator], "empty string")
}

func TestView_FullAllMissing(t *testing.T) {
	view := View(model.BuildingRecord{Geometry: footprint()}, ModeFull)
	for _, label := range labels(ModeFull) {
		assert.Equal(t, enrich.NotAvailable, view[label], label)
	}
}

func TestView_Basic(t *testing.T) {
	view := View(fullRecord(), ModeBasic)

	assert.Len(t, view, 5)
	assert.Equal(t, 1931, view[LabelConstructionYear])
	assert.Equal(t, "D", view[LabelEnergyLabel])
	assert.InDelta(t, 212.4, view[LabelBasicEnergyConsumption], 1e-9)
	assert.Equal(t, "N", view[LabelCarbonLabel])
	assert.InDelta(t, 41.0, view[LabelBasicCarbonEstimate], 1e-9)
	_, hasAddress := view[LabelAddress]
	assert.False(t, hasAddress)
}

func TestColumns(t *testing.T) {
	full := Columns(ModeFull)
	assert.Len(t, full, 15)
	assert.Contains(t, full, model.ColHabitableSurface)
	assert.Contains(t, full, model.ColHeatingEnergyType)
	assert.Contains(t, full, model.ColHotWaterEnergyType)
	assert.NotContains(t, full, model.ColGeometry)

	assert.Equal(t, []model.Column{
		model.ColConstructionYear,
		model.ColEnergyLabel,
		model.ColEnergyConsumption,
		model.ColCarbonLabel,
		model.ColCarbonEstimate,
	}, Columns(ModeBasic))
}

func TestProject_FeatureCollection(t *testing.T) {
	fc := Project([]model.BuildingRecord{fullRecord(), {Geometry: nil}}, ModeFull)
	require.Len(t, fc.Features, 1)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string         `json:"type"`
			Geometry map[string]any `json:"geometry"`
			Props    map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)
	require.Len(t, decoded.Features, 1)
	assert.Equal(t, "Feature", decoded.Features[0].Type)
	assert.Equal(t, "Polygon", decoded.Features[0].Geometry["type"])
	assert.Equal(t, "12 Rue Example", decoded.Features[0].Props[LabelAddress])
}

func TestProject_Empty(t *testing.T) {
	fc := Project(nil, ModeFull)
	require.NotNil(t, fc.Features)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded["type"])
	features, ok := decoded["features"].([]any)
	require.True(t, ok, "features must be an array, got %s", data)
	assert.Empty(t, features)
}
