// Package field implements the field extractor: matching DVEntry
// records to a driver's declared FieldInfo list, unit conversion,
// storage-counter expansion, and TPL status join/include.
package field

import (
	"github.com/serebryakov7/wmbusmeters/internal/dvparser"
	"github.com/serebryakov7/wmbusmeters/internal/lookup"
	"github.com/serebryakov7/wmbusmeters/internal/units"
	"github.com/serebryakov7/wmbusmeters/internal/vif"
)

// Matcher is the conjunction predicate over DVEntry used by
// FieldInfo.matcher: every populated ("Has*") predicate must hold.
type Matcher struct {
	VIFRange    vif.Range
	HasVIFRange bool

	MeasurementType    vif.MeasurementType
	HasMeasurementType bool

	StorageLo, StorageHi int
	HasStorageRange      bool

	Tariff    int
	HasTariff bool

	Subunit    int
	HasSubunit bool

	Combinable    vif.Combinable
	HasCombinable bool
}

// VR sets the required VIF range.
func (m Matcher) VR(r vif.Range) Matcher { m.VIFRange, m.HasVIFRange = r, true; return m }

// MT sets the required measurement type.
func (m Matcher) MT(t vif.MeasurementType) Matcher {
	m.MeasurementType, m.HasMeasurementType = t, true
	return m
}

// Storage sets the required inclusive storage-number range.
func (m Matcher) Storage(lo, hi int) Matcher {
	m.StorageLo, m.StorageHi, m.HasStorageRange = lo, hi, true
	return m
}

// Combinables requires the entry to carry combinable VIFE c.
func (m Matcher) Combinables(c vif.Combinable) Matcher {
	m.Combinable, m.HasCombinable = c, true
	return m
}

// Matches reports whether e satisfies every populated predicate.
func (m Matcher) Matches(e *dvparser.DVEntry) bool {
	if m.HasVIFRange && e.VIFRange != m.VIFRange {
		return false
	}
	if m.HasMeasurementType && e.MeasurementType != m.MeasurementType {
		return false
	}
	if m.HasStorageRange && (e.StorageNr < m.StorageLo || e.StorageNr > m.StorageHi) {
		return false
	}
	if m.HasTariff && e.TariffNr != m.Tariff {
		return false
	}
	if m.HasSubunit && e.SubunitNr != m.Subunit {
		return false
	}
	if m.HasCombinable && !e.HasCombinable(m.Combinable) {
		return false
	}
	return true
}

// Info is a driver's static field declaration.
type Info struct {
	Name             string // may contain {storage_counter} / {storage_counter-Ncounter}
	Quantity         units.Quantity
	DefaultUnit      units.Unit
	DifVifKey        string // literal key match, takes precedence over Matcher
	Matcher          Matcher
	Signed           bool
	Lookup           *lookup.Lookup
	IncludeTPLStatus bool
	JoinTPLStatus    bool
	Optional         bool
	Hidden           bool
	Important        bool
	Status           bool
	Calc             string // formula expression, empty when this is a raw field
}

// Value is one extracted (field_name, value, unit) output pair.
type Value struct {
	Name    string
	Number  float64
	IsText  bool
	Text    string
	Unit    units.Unit
	Offset  int
}
