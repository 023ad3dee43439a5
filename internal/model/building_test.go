package model

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(x0, y0, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x0 + size, y0, x0 + size, y0 + size, x0, y0 + size, x0, y0,
	}, []int{10})
}

func TestBBoxValidate(t *testing.T) {
	tests := []struct {
		name    string
		bbox    BBox
		wantErr bool
	}{
		{"valid", BBox{XMin: 0, XMax: 10, YMin: 0, YMax: 10}, false},
		{"degenerate point", BBox{XMin: 5, XMax: 5, YMin: 5, YMax: 5}, false},
		{"inverted x", BBox{XMin: 10, XMax: 0, YMin: 0, YMax: 10}, true},
		{"inverted y", BBox{XMin: 0, XMax: 10, YMin: 10, YMax: 0}, true},
		{"nan", BBox{XMin: math.NaN(), XMax: 10, YMin: 0, YMax: 10}, true},
		{"inf", BBox{XMin: 0, XMax: math.Inf(1), YMin: 0, YMax: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bbox.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrInvalidBBox))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBBoxIntersects(t *testing.T) {
	bbox := BBox{XMin: 100, XMax: 200, YMin: 100, YMax: 200}

	assert.True(t, bbox.Intersects(square(150, 150, 10)), "inside")
	assert.True(t, bbox.Intersects(square(190, 190, 50)), "overlapping corner")
	assert.True(t, bbox.Intersects(square(50, 50, 500)), "covering")
	assert.True(t, bbox.Intersects(square(200, 120, 10)), "touching edge")
	assert.False(t, bbox.Intersects(square(300, 300, 10)), "disjoint")
	assert.False(t, bbox.Intersects(nil))
}

func TestBuildingRecordSet(t *testing.T) {
	var r BuildingRecord

	require.NoError(t, r.Set(ColAddressLabel, "12 Rue Example 75010 Paris"))
	require.NoError(t, r.Set(ColConstructionYear, int64(1931)))
	require.NoError(t, r.Set(ColNumberOfUnits, 12.0))
	require.NoError(t, r.Set(ColHabitableSurface, "64.5"))
	require.NoError(t, r.Set(ColEnergyLabel, []byte("D")))
	require.NoError(t, r.Set(ColGasConsumption, nil))
	require.NoError(t, r.Set(ColHeatingEnergyType, ""))

	require.NotNil(t, r.AddressLabel)
	assert.Equal(t, "12 Rue Example 75010 Paris", *r.AddressLabel)
	require.NotNil(t, r.ConstructionYear)
	assert.Equal(t, 1931, *r.ConstructionYear)
	require.NotNil(t, r.NumberOfUnits)
	assert.Equal(t, 12, *r.NumberOfUnits)
	require.NotNil(t, r.HabitableSurfacePerUnit)
	assert.InDelta(t, 64.5, *r.HabitableSurfacePerUnit, 1e-9)
	require.NotNil(t, r.EnergyLabel)
	assert.Equal(t, "D", *r.EnergyLabel)
	assert.Nil(t, r.GasConsumptionTotal)
	require.NotNil(t, r.HeatingEnergyType, "empty string is kept distinct from missing")
	assert.Equal(t, "", *r.HeatingEnergyType)
}

func TestBuildingRecordSet_MalformedDegradesToMissing(t *testing.T) {
	var r BuildingRecord

	require.NoError(t, r.Set(ColEnergyConsumption, "n/a"))
	require.NoError(t, r.Set(ColNumberOfUnits, int64(-3)))
	require.NoError(t, r.Set(ColCarbonEstimate, math.NaN()))

	assert.Nil(t, r.EnergyConsumption)
	assert.Nil(t, r.NumberOfUnits)
	assert.Nil(t, r.CarbonEstimate)
}

func TestBuildingRecordSet_UnknownColumn(t *testing.T) {
	var r BuildingRecord
	err := r.Set(Column("nope"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")

	err = r.Set(ColGeometry, "x")
	require.Error(t, err)
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(ColConstructionYear)
	require.True(t, ok)
	assert.Equal(t, KindInt, k)

	_, ok = KindOf(ColGeometry)
	assert.False(t, ok)
	assert.Equal(t, "float", KindFloat.String())
}

func TestAttributeColumns(t *testing.T) {
	cols := AttributeColumns()
	assert.Len(t, cols, len(attributeKinds))
	for _, c := range cols {
		assert.True(t, IsAttribute(c), c)
	}
	assert.NotContains(t, cols, ColGeometry)
}
