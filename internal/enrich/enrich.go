// Package enrich derives the computed building attributes from raw BDNB
// columns. Every function is pure and safe for concurrent use.
package enrich

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/bdnb-api/internal/model"
)

// NotAvailable is the display value for any missing field.
const NotAvailable = "N.C."

// notComputed is the raw DPE label sentinel for a diagnostic that was not computed.
const notComputed = "N"

// EnergySeparator joins the energy sources of a composite energy type.
const EnergySeparator = " + "

// Building types whose stored surface is already a building total.
const (
	TypeNonResidential = "Non résidentiel"
	TypeCollective     = "Logements collectifs"
)

// Magnitude thresholds above which the stored surface is read as a total.
const (
	totalSurfaceThreshold = 400.0
	totalUnitsThreshold   = 50
)

var postalCodePattern = regexp.MustCompile(`[0-9]{5}`)

// DeriveHabitableSurface estimates the building's habitable surface. The
// stored surface is a building total for non-residential and collective
// housing, or when it is both large and spread over many units; otherwise it
// is per unit and gets scaled by the unit count.
func DeriveHabitableSurface(units int, surface float64, buildingType string) float64 {
	if isTotalSurfaceType(buildingType) || (surface > totalSurfaceThreshold && units > totalUnitsThreshold) {
		return surface
	}
	return float64(units) * surface
}

func isTotalSurfaceType(buildingType string) bool {
	t := norm.NFC.String(strings.TrimSpace(buildingType))
	return t == TypeNonResidential || t == TypeCollective
}

// HabitableSurface applies DeriveHabitableSurface to a record. A missing
// surface yields a missing result, as does a missing unit count when the
// surface has to be scaled.
func HabitableSurface(r model.BuildingRecord) *float64 {
	if r.HabitableSurfacePerUnit == nil {
		return nil
	}
	surface := *r.HabitableSurfacePerUnit

	var buildingType string
	if r.BuildingType != nil {
		buildingType = *r.BuildingType
	}

	if r.NumberOfUnits == nil {
		if isTotalSurfaceType(buildingType) {
			return &surface
		}
		return nil
	}

	v := DeriveHabitableSurface(*r.NumberOfUnits, surface, buildingType)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NormalizeEnergyType maps a missing or empty energy type to NotAvailable.
func NormalizeEnergyType(s *string) string {
	if s == nil || *s == "" {
		return NotAvailable
	}
	return *s
}

// MergeEnergyType combines the heating and hot water energy types. Both
// inputs must already be normalized. Composite values are merged as a set of
// sources, kept in first-seen order: heating sources first, then any new hot
// water sources.
func MergeEnergyType(heating, hotWater string) string {
	if heating == hotWater {
		return heating
	}
	if heating == NotAvailable {
		return hotWater
	}
	if hotWater == NotAvailable {
		return heating
	}

	seen := make(map[string]bool)
	var sources []string
	for _, part := range [...]string{heating, hotWater} {
		for _, src := range SplitEnergyType(part) {
			if seen[src] {
				continue
			}
			seen[src] = true
			sources = append(sources, src)
		}
	}
	return strings.Join(sources, EnergySeparator)
}

// SplitEnergyType returns the individual sources of a composite energy type.
func SplitEnergyType(s string) []string {
	var out []string
	for _, src := range strings.Split(s, EnergySeparator) {
		if src = strings.TrimSpace(src); src != "" {
			out = append(out, src)
		}
	}
	return out
}

// ExtractStreet returns the part of an address label before its postal code,
// minus the separator preceding it. Labels without a postal code, or starting
// with one, are returned unchanged.
func ExtractStreet(label string) string {
	loc := postalCodePattern.FindStringIndex(label)
	if loc == nil || loc[0] == 0 {
		return label
	}
	prefix := label[:loc[0]]
	_, size := utf8.DecodeLastRuneInString(prefix)
	return prefix[:len(prefix)-size]
}

// NormalizeLabel maps a missing, empty or not-computed DPE label to NotAvailable.
func NormalizeLabel(s *string) string {
	if s == nil || *s == "" || *s == notComputed {
		return NotAvailable
	}
	return *s
}
