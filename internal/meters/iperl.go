// Package meters holds the built-in driver declarations and a
// RegisterAll that wires them into a driver.Registry.
package meters

import (
	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/units"
	"github.com/serebryakov7/wmbusmeters/internal/vif"
)

// Iperl is a Sensus iperl water meter, media 0x16 (warm water) and 0x07
// (cold water), version 0x68.
var Iperl = driver.Info{
	Name: "iperl",
	Detections: []driver.Tuple{
		{Mfct: dll.ManufacturerCode("SEN"), Media: 0x16, Version: 0x68},
		{Mfct: dll.ManufacturerCode("SEN"), Media: 0x07, Version: 0x68},
	},
	MeterType:     "WaterMeter",
	LinkModes:     []string{"T1"},
	SecurityModes: []string{"Mode5"},
	Fields: []field.Info{
		{Name: "total_m3", Quantity: units.Volume, DefaultUnit: units.M3,
			Matcher: field.Matcher{}.VR(vif.RangeVolume).MT(vif.Instantaneous)},
	},
	DefaultFields: []string{"total_m3"},
}
