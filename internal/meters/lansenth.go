package meters

import (
	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/lookup"
	"github.com/serebryakov7/wmbusmeters/internal/units"
	"github.com/serebryakov7/wmbusmeters/internal/vif"
)

// lansenthStatus decodes the manufacturer-specific bits of the TPL status
// byte for a LAS temperature/humidity sensor.
var lansenthStatus = lookup.Lookup{Rules: []lookup.Rule{{
	Name: "TPL_STS", Type: lookup.BitToString, Mask: 0xE0, DefaultMessage: "OK",
	Maps: []lookup.Map{{From: 0x40, To: "SABOTAGE_ENCLOSURE", Test: lookup.Set}},
}}}

// Lansenth is a LAS room temperature/humidity sensor with instantaneous
// plus 1h/24h rolling-average fields.
var Lansenth = driver.Info{
	Name:       "lansenth",
	Detections: []driver.Tuple{{Mfct: dll.ManufacturerCode("LAS"), Media: 0x1B, Version: 0x07}},
	MeterType:  "TempHygroMeter",
	MfctStatus: lansenthStatus,
	Fields: []field.Info{
		{Name: "status", Status: true, IncludeTPLStatus: true},
		{Name: "current_temperature_c", Quantity: units.Temperature, DefaultUnit: units.C, Signed: true,
			Matcher: field.Matcher{}.VR(vif.RangeExternalTemperature).MT(vif.Instantaneous)},
		{Name: "current_relative_humidity_rh", Quantity: units.RelativeHumidity, DefaultUnit: units.RH,
			Matcher: field.Matcher{}.VR(vif.RangeRelativeHumidity).MT(vif.Instantaneous)},
		{Name: "average_temperature_1h_c", Quantity: units.Temperature, DefaultUnit: units.C, Signed: true,
			Matcher: field.Matcher{}.VR(vif.RangeExternalTemperature).MT(vif.Instantaneous).Storage(1, 1)},
		{Name: "average_relative_humidity_1h_rh", Quantity: units.RelativeHumidity, DefaultUnit: units.RH,
			Matcher: field.Matcher{}.VR(vif.RangeRelativeHumidity).MT(vif.Instantaneous).Storage(1, 1)},
		{Name: "average_temperature_24h_c", Quantity: units.Temperature, DefaultUnit: units.C, Signed: true,
			Matcher: field.Matcher{}.VR(vif.RangeExternalTemperature).MT(vif.Instantaneous).Storage(2, 2)},
		{Name: "average_relative_humidity_24h_rh", Quantity: units.RelativeHumidity, DefaultUnit: units.RH,
			Matcher: field.Matcher{}.VR(vif.RangeRelativeHumidity).MT(vif.Instantaneous).Storage(2, 2)},
	},
	DefaultFields: []string{"name", "id", "current_temperature_c", "current_relative_humidity_rh", "timestamp"},
}
