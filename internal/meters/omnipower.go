package meters

import (
	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/units"
	"github.com/serebryakov7/wmbusmeters/internal/vif"
)

// Omnipower is a Kamstrup single/three-phase electricity meter reporting
// consumption and production energy/power over C1.
var Omnipower = driver.Info{
	Name:          "omnipower",
	Detections:    []driver.Tuple{{Mfct: dll.ManufacturerCode("KAM"), Media: 0x02, Version: 0x30}},
	MeterType:     "ElectricityMeter",
	LinkModes:     []string{"C1"},
	SecurityModes: []string{"Mode9"},
	Fields: []field.Info{
		{Name: "total_energy_consumption_kwh", Quantity: units.Energy, DefaultUnit: units.KWH, Signed: true,
			Matcher: field.Matcher{}.VR(vif.RangeEnergyWh).MT(vif.Instantaneous)},
		{Name: "total_energy_production_kwh", Quantity: units.Energy, DefaultUnit: units.KWH, Signed: true,
			Matcher: field.Matcher{}.VR(vif.RangeEnergyWh).MT(vif.Instantaneous).Combinables(vif.CombinableBackwardFlow)},
		{Name: "current_power_consumption_kw", Quantity: units.Power, DefaultUnit: units.KW, Signed: true,
			Matcher: field.Matcher{}.VR(vif.RangePower).MT(vif.Instantaneous)},
		{Name: "current_power_production_kw", Quantity: units.Power, DefaultUnit: units.KW, Signed: true,
			Matcher: field.Matcher{}.VR(vif.RangePower).MT(vif.Instantaneous).Combinables(vif.CombinableBackwardFlow)},
	},
	DefaultFields: []string{
		"name", "id",
		"total_energy_consumption_kwh", "total_energy_production_kwh",
		"current_power_consumption_kw", "current_power_production_kw",
		"timestamp",
	},
}
