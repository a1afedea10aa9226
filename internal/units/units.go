// Package units implements the closed Unit/Quantity enums and the static
// conversion table between units of the same quantity.
package units

import "fmt"

// Quantity is a closed enum of the physical quantities a VIF range can
// describe.
type Quantity int

const (
	Energy Quantity = iota
	Volume
	Power
	Flow
	Temperature
	TemperatureDifference
	Time
	HCA
	Voltage
	Current
	PointInTime
	Text
	Counter
	Mass
	Pressure
	RelativeHumidity
	Dimensionless
)

func (q Quantity) String() string {
	switch q {
	case Energy:
		return "Energy"
	case Volume:
		return "Volume"
	case Power:
		return "Power"
	case Flow:
		return "Flow"
	case Temperature:
		return "Temperature"
	case TemperatureDifference:
		return "TemperatureDifference"
	case Time:
		return "Time"
	case HCA:
		return "HCA"
	case Voltage:
		return "Voltage"
	case Current:
		return "Current"
	case PointInTime:
		return "PointInTime"
	case Text:
		return "Text"
	case Counter:
		return "Counter"
	case Mass:
		return "Mass"
	case Pressure:
		return "Pressure"
	case RelativeHumidity:
		return "RelativeHumidity"
	case Dimensionless:
		return "Dimensionless"
	default:
		return "UnknownQuantity"
	}
}

// Unit is a closed enum of print/value units. Every Unit belongs to
// exactly one Quantity (see quantityOf).
type Unit int

const (
	KWH Unit = iota
	WH
	Joule
	M3
	L
	KW
	W
	M3H
	LH
	C // degrees Celsius
	K // Kelvin
	Hour
	Minute
	Second
	Year
	HCAUnit
	Volt
	Ampere
	UnixTimestamp
	DateTimeUnit
	DateUnit
	StringUnit
	COUNT
	KG
	Bar
	PascalUnit
	RH // relative humidity percent
	None
)

var unitName = map[Unit]string{
	KWH: "kwh", WH: "wh", Joule: "j", M3: "m3", L: "l",
	KW: "kw", W: "w", M3H: "m3h", LH: "lh",
	C: "c", K: "k", Hour: "h", Minute: "min", Second: "s", Year: "y",
	HCAUnit: "hca", Volt: "v", Ampere: "a", UnixTimestamp: "ut",
	DateTimeUnit: "datetime", DateUnit: "date", StringUnit: "txt",
	COUNT: "counter", KG: "kg", Bar: "bar", PascalUnit: "pa", RH: "rh",
	None: "",
}

// String returns the unit name used after the underscore in JSON output
// keys, e.g. "kwh", "m3", "c".
func (u Unit) String() string {
	if s, ok := unitName[u]; ok {
		return s
	}
	return "unknown"
}

var unitQuantity = map[Unit]Quantity{
	KWH: Energy, WH: Energy, Joule: Energy,
	M3: Volume, L: Volume,
	KW: Power, W: Power,
	M3H: Flow, LH: Flow,
	C: Temperature, K: Temperature,
	Hour: Time, Minute: Time, Second: Time, Year: Time,
	HCAUnit:       HCA,
	Volt:          Voltage,
	Ampere:        Current,
	UnixTimestamp: PointInTime, DateTimeUnit: PointInTime, DateUnit: PointInTime,
	StringUnit: Text,
	COUNT:      Counter,
	KG:         Mass,
	Bar:        Pressure, PascalUnit: Pressure,
	RH:   RelativeHumidity,
	None: Dimensionless,
}

// QuantityOf returns the Quantity a Unit belongs to.
func QuantityOf(u Unit) Quantity {
	if q, ok := unitQuantity[u]; ok {
		return q
	}
	return Dimensionless
}

// conversion factor to the quantity's SI/canonical base unit: kwh for
// Energy (base Wh really, see below), m3 for Volume, etc. Each entry maps
// Unit -> (multiply raw value by this to reach the canonical unit).
var toCanonical = map[Unit]float64{
	WH: 1.0, KWH: 1000.0, Joule: 1.0 / 3600.0, // canonical: Wh
	L: 1.0, M3: 1000.0, // canonical: L
	W: 1.0, KW: 1000.0, // canonical: W
	LH: 1.0, M3H: 1000.0, // canonical: L/h
	C: 1.0, K: 1.0, // canonical: degrees C (difference-preserving for K steps)
	Second: 1.0, Minute: 60.0, Hour: 3600.0, Year: 3600.0 * 24 * 365,
	HCAUnit: 1.0, Volt: 1.0, Ampere: 1.0,
	KG: 1.0, Bar: 100000.0, PascalUnit: 1.0,
	RH: 1.0, None: 1.0,
}

// Convert converts value from unit `from` to unit `to`. It panics if the
// two units do not share a Quantity: crossing quantities is a programmer
// error (ConfigError is for user-facing mistakes; a cross-quantity
// convert call is a bug in the calling code, not user input), never a
// recoverable decode-time condition.
func Convert(value float64, from, to Unit) float64 {
	qf, qt := QuantityOf(from), QuantityOf(to)
	if qf != qt {
		panic(fmt.Sprintf("units: cannot convert %s (%s) to %s (%s): different quantities", from, qf, to, qt))
	}
	if from == to {
		return value
	}
	ff, okf := toCanonical[from]
	ft, okt := toCanonical[to]
	if !okf || !okt {
		panic(fmt.Sprintf("units: no conversion factor registered for %s or %s", from, to))
	}
	canonical := value * ff
	return canonical / ft
}

// CanConvert reports whether from and to share a Quantity, i.e. whether
// Convert would succeed instead of panicking.
func CanConvert(from, to Unit) bool {
	return QuantityOf(from) == QuantityOf(to)
}
