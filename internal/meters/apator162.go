package meters

import (
	"fmt"

	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/mbusutil"
	"github.com/serebryakov7/wmbusmeters/internal/units"
)

// Apator162 wraps an entirely proprietary protocol inside the wM-Bus
// frame. The offset of the 32-bit total is guessed from the high bits of
// byte 11 (and byte 10 in one case), matching the upstream driver's own
// documented heuristic.
var Apator162 = driver.Info{
	Name:          "apator162",
	Detections:    []driver.Tuple{{Mfct: dll.ManufacturerCode("APA"), Media: 0x06, Version: 0x05}, {Mfct: dll.ManufacturerCode("APA"), Media: 0x07, Version: 0x05}},
	MeterType:     "WaterMeter",
	LinkModes:     []string{"T1", "C1"},
	SecurityModes: []string{"KamstrupC1"},
	DefaultFields: []string{"name", "id", "total_m3", "timestamp"},
	ProcessContent: func(content []byte) ([]field.Value, bool, error) {
		if len(content) < 13 {
			return nil, true, fmt.Errorf("apator162: content too short, need at least 13 bytes, got %d", len(content))
		}
		b10, b11 := content[10], content[11]

		var offset int
		switch {
		case b11&0x84 == 0x84:
			offset = 23
		case b11&0x83 == 0x83:
			offset = 23
		case b11&0x81 == 0x81:
			if b10 == 0x02 {
				offset = 23
			} else {
				offset = 20
			}
		case b11&0x40 == 0x40:
			offset = 20
		case b11&0x10 == 0x10:
			offset = 12
		case b11&0x01 == 0x01:
			offset = 9
		default:
			return nil, true, fmt.Errorf("apator162: unrecognized proprietary layout byte %#02x, expected bit 0x01, 0x10, 0x40, 0x81, 0x83, or 0x84 to be set", b11)
		}

		if len(content) < offset+4 {
			return nil, true, fmt.Errorf("apator162: content too short for a total field at offset %d", offset)
		}
		raw, err := mbusutil.LEUint(content, offset, 4)
		if err != nil {
			return nil, true, fmt.Errorf("apator162: %w", err)
		}

		return []field.Value{{
			Name:   "total_m3",
			Number: float64(raw) / 1000.0,
			Unit:   units.M3,
		}}, true, nil
	},
}
