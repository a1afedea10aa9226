package vif

import "github.com/serebryakov7/wmbusmeters/internal/units"

// Range is the VIF meaning family a VIF byte's low 7 bits select: energy,
// volume, power, flow, temperatures, pressure, dates, HCA, error flags,
// plus the bookkeeping ranges needed to walk past fields we don't render.
type Range int

const (
	RangeNone Range = iota
	RangeEnergyWh
	RangeEnergyJ
	RangeVolume
	RangeMass
	RangeOnTime
	RangeOperatingTime
	RangePower
	RangePowerJH
	RangeVolumeFlow
	RangeVolumeFlowExtMin
	RangeVolumeFlowExtSec
	RangeMassFlow
	RangeFlowTemperature
	RangeReturnTemperature
	RangeTemperatureDifference
	RangeExternalTemperature
	RangePressure
	RangeDate
	RangeDateTime
	RangeHCA
	RangeAveragingDuration
	RangeActualityDuration
	RangeFabricationNumber
	RangeEnhancedIdentification
	RangeAccessNumber
	RangeMedium
	RangeManufacturer
	RangeParameterSet
	RangeModelVersion
	RangeCustomer
	RangeLocation
	RangeErrorFlags
	RangeDigitalInput
	RangeRelativeHumidity
	RangeVoltage
	RangeManufacturerSpecific
	RangeAnyVIF
)

// scaled is the decoded meaning of a primary-table VIF byte: its Range,
// the Quantity/Unit the raw value should be interpreted as, and the factor
// to multiply the raw decoded integer/real by to reach that Unit.
type scaled struct {
	Range    Range
	Quantity units.Quantity
	Unit     units.Unit
	Scale    float64
}

func pow10(n int) float64 {
	v := 1.0
	if n >= 0 {
		for i := 0; i < n; i++ {
			v *= 10
		}
		return v
	}
	for i := 0; i < -n; i++ {
		v /= 10
	}
	return v
}

// Scale classifies a primary-table VIF byte (bits 0-6; bit 7 is the "VIFE
// follows" flag and is ignored here) and returns how to interpret the raw
// decoded numeric value. ok is false for VIF codes this implementation
// does not give numeric meaning to (dates, text, manufacturer-specific,
// and bookkeeping ranges use their own decoders instead).
func Scale(vifByte byte) (scaled, bool) {
	v := vifByte & 0x7F
	switch {
	case v >= 0x00 && v <= 0x07: // E000 0nnn energy Wh
		nnn := int(v & 0x07)
		return scaled{RangeEnergyWh, units.Energy, units.WH, pow10(nnn - 3)}, true
	case v >= 0x08 && v <= 0x0F: // E000 1nnn energy J
		nnn := int(v & 0x07)
		return scaled{RangeEnergyJ, units.Energy, units.Joule, pow10(nnn)}, true
	case v >= 0x10 && v <= 0x17: // E001 0nnn volume m3
		nnn := int(v & 0x07)
		return scaled{RangeVolume, units.Volume, units.M3, pow10(nnn - 6)}, true
	case v >= 0x18 && v <= 0x1F: // E001 1nnn mass kg
		nnn := int(v & 0x07)
		return scaled{RangeMass, units.Mass, units.KG, pow10(nnn - 3)}, true
	case v >= 0x20 && v <= 0x23: // E010 00nn on time
		return scaled{RangeOnTime, units.Time, timeUnitFor(int(v & 0x03)), 1}, true
	case v >= 0x24 && v <= 0x27: // E010 01nn operating time
		return scaled{RangeOperatingTime, units.Time, timeUnitFor(int(v & 0x03)), 1}, true
	case v >= 0x28 && v <= 0x2F: // E010 1nnn power W
		nnn := int(v & 0x07)
		return scaled{RangePower, units.Power, units.W, pow10(nnn - 3)}, true
	case v >= 0x30 && v <= 0x37: // E011 0nnn power J/h
		nnn := int(v & 0x07)
		return scaled{RangePowerJH, units.Power, units.W, pow10(nnn)}, true
	case v >= 0x38 && v <= 0x3F: // E011 1nnn volume flow m3/h
		nnn := int(v & 0x07)
		return scaled{RangeVolumeFlow, units.Flow, units.M3H, pow10(nnn - 6)}, true
	case v >= 0x40 && v <= 0x47: // E100 0nnn volume flow ext m3/min
		nnn := int(v & 0x07)
		return scaled{RangeVolumeFlowExtMin, units.Flow, units.M3H, pow10(nnn-7) * 60}, true
	case v >= 0x48 && v <= 0x4F: // E100 1nnn volume flow ext m3/s
		nnn := int(v & 0x07)
		return scaled{RangeVolumeFlowExtSec, units.Flow, units.M3H, pow10(nnn-9) * 3600}, true
	case v >= 0x50 && v <= 0x57: // E101 0nnn mass flow kg/h
		nnn := int(v & 0x07)
		return scaled{RangeMassFlow, units.Mass, units.KG, pow10(nnn - 3)}, true
	case v >= 0x58 && v <= 0x5B: // E101 10nn flow temperature C
		nn := int(v & 0x03)
		return scaled{RangeFlowTemperature, units.Temperature, units.C, pow10(nn - 3)}, true
	case v >= 0x5C && v <= 0x5F: // E101 11nn return temperature C
		nn := int(v & 0x03)
		return scaled{RangeReturnTemperature, units.Temperature, units.C, pow10(nn - 3)}, true
	case v >= 0x60 && v <= 0x63: // E110 00nn temperature difference K
		nn := int(v & 0x03)
		return scaled{RangeTemperatureDifference, units.TemperatureDifference, units.K, pow10(nn - 3)}, true
	case v >= 0x64 && v <= 0x67: // E110 01nn external temperature C
		nn := int(v & 0x03)
		return scaled{RangeExternalTemperature, units.Temperature, units.C, pow10(nn - 3)}, true
	case v >= 0x68 && v <= 0x6B: // E110 10nn pressure bar
		nn := int(v & 0x03)
		return scaled{RangePressure, units.Pressure, units.Bar, pow10(nn - 3)}, true
	case v == 0x6C:
		return scaled{Range: RangeDate}, false
	case v == 0x6D:
		return scaled{Range: RangeDateTime}, false
	case v == 0x6E:
		return scaled{RangeHCA, units.HCA, units.HCAUnit, 1}, true
	case v >= 0x70 && v <= 0x73:
		return scaled{Range: RangeAveragingDuration, Quantity: units.Time, Unit: timeUnitFor(int(v & 0x03)), Scale: 1}, true
	case v >= 0x74 && v <= 0x77:
		return scaled{Range: RangeActualityDuration, Quantity: units.Time, Unit: timeUnitFor(int(v & 0x03)), Scale: 1}, true
	case v == 0x78:
		return scaled{Range: RangeFabricationNumber}, false
	case v == 0x79:
		return scaled{Range: RangeEnhancedIdentification}, false
	case v == 0x7E:
		return scaled{Range: RangeAnyVIF}, false
	case v == 0x7F:
		return scaled{Range: RangeManufacturerSpecific}, false
	default:
		return scaled{}, false
	}
}

func timeUnitFor(nn int) units.Unit {
	switch nn {
	case 0:
		return units.Second
	case 1:
		return units.Minute
	case 2:
		return units.Hour
	default:
		return units.Year
	}
}

// IsDate reports whether the VIF selects a type G date.
func IsDate(vifByte byte) bool { return vifByte&0x7F == 0x6C }

// IsDateTime reports whether the VIF selects a type F datetime.
func IsDateTime(vifByte byte) bool { return vifByte&0x7F == 0x6D }

// IsManufacturerSpecific reports whether the VIF is the manufacturer
// specific marker (0x7F, primary table) or any byte once the DIF has
// already signalled a manufacturer-specific payload.
func IsManufacturerSpecific(vifByte byte) bool { return vifByte&0x7F == 0x7F }

// --- FD and FB secondary extension tables: access number, medium,
// model/version, parameter set, customer, location, error flags, digital
// input, relative humidity ---

// RangeOfFD classifies a VIFE byte following a primary VIF of 0xFD (first
// extension table).
func RangeOfFD(b byte) Range {
	switch b & 0x7F {
	case 0x08:
		return RangeAccessNumber
	case 0x09:
		return RangeMedium
	case 0x0A:
		return RangeManufacturer
	case 0x0B:
		return RangeParameterSet
	case 0x0C:
		return RangeModelVersion
	case 0x0D:
		return RangeCustomer
	case 0x10:
		return RangeLocation
	case 0x17:
		return RangeErrorFlags
	case 0x1B, 0x1D, 0x1E, 0x1F:
		return RangeDigitalInput
	default:
		return RangeNone
	}
}

// RangeOfFB classifies a VIFE byte following a primary VIF of 0xFB (second
// extension table).
func RangeOfFB(b byte) (scaled, bool) {
	switch b & 0x7F {
	case 0x1A:
		return scaled{RangeRelativeHumidity, units.RelativeHumidity, units.RH, 0.1}, true
	case 0x1C:
		return scaled{RangeVoltage, units.Voltage, units.Volt, 0.001}, true
	default:
		return scaled{}, false
	}
}

// IsFDExtension and IsFBExtension identify the two secondary-table marker
// bytes used as a primary VIF.
func IsFDExtension(vifByte byte) bool { return vifByte&0x7F == 0x7D }
func IsFBExtension(vifByte byte) bool { return vifByte&0x7F == 0x7B }
