package meters

import (
	"fmt"

	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/mbusutil"
	"github.com/serebryakov7/wmbusmeters/internal/units"
)

// Multical21 is a Kamstrup water meter that frames its content as a raw
// byte layout keyed off a frame-type byte rather than a DIF/VIF walk
// so it bypasses the generic DV parser entirely via
// ProcessContent.
var Multical21 = driver.Info{
	Name:          "multical21",
	Detections:    []driver.Tuple{{Mfct: dll.ManufacturerCode("KAM"), Media: 0x16, Version: driver.Wildcard}},
	MeterType:     "WaterMeter",
	LinkModes:     []string{"C1", "T1"},
	SecurityModes: []string{"Mode5"},
	DefaultFields: []string{"total_water_consumption_m3"},
	ProcessContent: func(content []byte) ([]field.Value, bool, error) {
		if len(content) < 3 {
			return nil, true, fmt.Errorf("multical21: content too short for a frame-type byte")
		}
		frameType := content[2]

		var offset int
		switch frameType {
		case 0x79: // short frame
			offset = 9
		case 0x78: // full frame
			offset = 10
		default:
			return nil, true, fmt.Errorf("multical21: unrecognized frame type %02X", frameType)
		}
		if len(content) < offset+4 {
			return nil, true, fmt.Errorf("multical21: content too short for a consumption field at offset %d", offset)
		}
		raw, err := mbusutil.LEUint(content, offset, 4)
		if err != nil {
			return nil, true, fmt.Errorf("multical21: %w", err)
		}
		consumption := float64(raw) / 1000.0

		return []field.Value{{
			Name:   "total_water_consumption_m3",
			Number: consumption,
			Unit:   units.M3,
		}}, true, nil
	},
}
