package dvparser

import (
	"fmt"
	"math"

	"github.com/serebryakov7/wmbusmeters/internal/mbusutil"
)

// ExtractDVUint16 reads a little-endian 16-bit value out of the entry
// stored under key.
func ExtractDVUint16(idx map[string]*DVEntry, key string) (uint16, int, error) {
	e, ok := idx[key]
	if !ok {
		return 0, -1, fmt.Errorf("dvparser: cannot extract uint16 from non-existent key %q", key)
	}
	v, err := mbusutil.LEUint(e.RawBytes, 0, 2)
	if err != nil {
		return 0, e.Offset, err
	}
	return uint16(v), e.Offset, nil
}

// ExtractDVFloat reads a 32-bit little-endian integer out of the entry
// stored under key and applies the entry's VIF scale to it. A negative
// power of ten is applied as a division by its exact integer divisor, so
// 1882 at 10^-3 yields 1.882.
func ExtractDVFloat(idx map[string]*DVEntry, key string) (float64, int, error) {
	e, ok := idx[key]
	if !ok {
		return 0, 0, fmt.Errorf("dvparser: cannot extract float from non-existent key %q", key)
	}
	raw, err := mbusutil.LEUint(e.RawBytes, 0, 4)
	if err != nil {
		return 0, e.Offset, err
	}
	if !e.HasScale || e.Scale == 0 {
		return 0, e.Offset, fmt.Errorf("dvparser: entry %q has no VIF scale", key)
	}
	if inv := math.Round(1 / e.Scale); e.Scale < 1 && inv*e.Scale == 1 {
		return float64(raw) / inv, e.Offset, nil
	}
	return float64(raw) * e.Scale, e.Offset, nil
}

// ExtractDVFloatCombined reads the low 16 bits from the entry at key and
// the high 16 bits from the entry at keyHighBits, scaling the combined
// 32-bit value by key's VIF scale.
func ExtractDVFloatCombined(idx map[string]*DVEntry, keyHighBits, key string) (float64, int, error) {
	e, ok := idx[key]
	if !ok {
		return 0, 0, fmt.Errorf("dvparser: cannot extract combined float, missing key %q", key)
	}
	eHigh, ok := idx[keyHighBits]
	if !ok {
		return 0, 0, fmt.Errorf("dvparser: cannot extract combined float, missing high-bits key %q", keyHighBits)
	}
	low, err := mbusutil.LEUint(e.RawBytes, 0, 2)
	if err != nil {
		return 0, e.Offset, err
	}
	high, err := mbusutil.LEUint(eHigh.RawBytes, 2, 2)
	if err != nil {
		return 0, e.Offset, err
	}
	raw := high<<16 | low
	if !e.HasScale || e.Scale == 0 {
		return 0, e.Offset, fmt.Errorf("dvparser: entry %q has no VIF scale", key)
	}
	return float64(raw) * e.Scale, e.Offset, nil
}
