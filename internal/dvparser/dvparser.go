// Package dvparser walks the DIF/DIFE/VIF/VIFE stream of a decrypted
// M-Bus data-record block and produces the DVEntry list and keyed map.
package dvparser

import (
	"fmt"

	"github.com/serebryakov7/wmbusmeters/internal/mbusutil"
	"github.com/serebryakov7/wmbusmeters/internal/units"
	"github.com/serebryakov7/wmbusmeters/internal/vif"
)

// Explanation annotates a byte span of the original telegram for
// diagnostics.
type Explanation struct {
	Offset      int
	Length      int
	Hex         string
	Description string
}

// DVEntry is one record extracted by the DV parser.
type DVEntry struct {
	Offset          int
	DifVifKey       string
	MeasurementType vif.MeasurementType
	VIFRange        vif.Range
	StorageNr       int
	TariffNr        int
	SubunitNr       int
	Combinables     []vif.Combinable
	RawHex          string
	RawBytes        []byte
	HasScale        bool
	Scale           float64
	Unit            units.Unit
	Quantity        units.Quantity
	ManufacturerSpecific bool
	MoreRecordsFollow    bool
}

// Result is the output of Parse: the ordered entry list, the same entries
// keyed by DifVifKey (with `_N` suffixes applied to disambiguate repeats),
// and the explanations collected while walking.
type Result struct {
	Entries      []*DVEntry
	Index        map[string]*DVEntry
	Explanations []Explanation
}

// Parse walks data (the telegram's decrypted content, Telegram.Content)
// and produces Result. baseOffset is the absolute offset of data[0]
// within the original telegram bytes, so Explanations carry
// (slice, absolute-offset) pairs usable without re-slicing.
func Parse(data []byte, baseOffset int) (Result, error) {
	res := Result{Index: map[string]*DVEntry{}}
	counts := map[string]int{}
	pos := 0

	for pos < len(data) {
		dif := data[pos]

		switch dif {
		case vif.DIFIdleFiller:
			pos++
			continue
		case vif.DIFSpecialFunction:
			// Special function marker: nothing more to parse in this block.
			pos = len(data)
			continue
		case vif.DIFManufacturerSpecificUntilEnd, vif.DIFManufacturerSpecificMoreFollows:
			rest := data[pos:]
			entry := &DVEntry{
				Offset:               baseOffset + pos,
				DifVifKey:            "manufacturer-specific",
				RawBytes:             rest,
				RawHex:               mbusutil.Bin2Hex(rest),
				ManufacturerSpecific: true,
				MoreRecordsFollow:    dif == vif.DIFManufacturerSpecificMoreFollows,
			}
			res.Entries = append(res.Entries, entry)
			res.Index[entry.DifVifKey] = entry
			res.Explanations = append(res.Explanations, Explanation{
				Offset: entry.Offset, Length: len(rest), Hex: entry.RawHex,
				Description: "manufacturer specific data",
			})
			pos = len(data)
			continue
		}

		difBytes := []byte{dif}
		storage := vif.StorageBit0(dif)
		tariff := 0
		subunit := 0
		pos++
		cur := dif
		for cur&0x80 != 0 {
			if pos >= len(data) {
				return res, fmt.Errorf("dvparser: truncated DIFE chain at offset %d", baseOffset+pos)
			}
			dife := data[pos]
			difBytes = append(difBytes, dife)
			f := vif.DecodeDIFE(dife)
			storage = storage<<4 | f.StorageNibble
			tariff = tariff<<2 | f.Tariff
			subunit = subunit<<1 | f.Subunit
			cur = dife
			pos++
		}

		enc, fixedLen := vif.DifLenEncoding(dif)

		if pos >= len(data) {
			return res, fmt.Errorf("dvparser: truncated record, missing vif at offset %d", baseOffset+pos)
		}
		vifByte := data[pos]
		vifBytes := []byte{vifByte}
		pos++
		cur = vifByte
		for cur&0x80 != 0 {
			if pos >= len(data) {
				return res, fmt.Errorf("dvparser: truncated VIFE chain at offset %d", baseOffset+pos)
			}
			vife := data[pos]
			vifBytes = append(vifBytes, vife)
			cur = vife
			pos++
		}

		length := fixedLen
		if enc == vif.EncodingVariableLength {
			if pos >= len(data) {
				return res, fmt.Errorf("dvparser: truncated variable-length field at offset %d", baseOffset+pos)
			}
			length = int(data[pos])
			pos++
		}
		if pos+length > len(data) {
			return res, fmt.Errorf("dvparser: record data runs past end of block at offset %d", baseOffset+pos)
		}
		raw := data[pos : pos+length]
		pos += length

		entry := buildEntry(difBytes, vifBytes, storage, tariff, subunit, raw)
		entry.Offset = baseOffset + pos - length

		dv := mbusutil.Bin2Hex(append(append([]byte{}, difBytes...), vifBytes...))
		counts[dv]++
		key := dv
		if counts[dv] > 1 {
			key = fmt.Sprintf("%s_%d", dv, counts[dv])
		}
		entry.DifVifKey = key

		res.Entries = append(res.Entries, entry)
		res.Index[key] = entry
		res.Explanations = append(res.Explanations, Explanation{
			Offset: entry.Offset, Length: length, Hex: entry.RawHex,
			Description: fmt.Sprintf("%s data", key),
		})
	}

	return res, nil
}

func buildEntry(difBytes, vifBytes []byte, storage, tariff, subunit int, raw []byte) *DVEntry {
	entry := &DVEntry{
		MeasurementType: vif.FunctionField(difBytes[0]),
		StorageNr:       storage,
		TariffNr:        tariff,
		SubunitNr:       subunit,
		RawBytes:        append([]byte{}, raw...),
		RawHex:          mbusutil.Bin2Hex(raw),
	}

	primary := vifBytes[0]
	switch {
	case vif.IsFDExtension(primary) && len(vifBytes) > 1:
		entry.VIFRange = vif.RangeOfFD(vifBytes[1])
	case vif.IsFBExtension(primary) && len(vifBytes) > 1:
		if sc, ok := vif.RangeOfFB(vifBytes[1]); ok {
			entry.VIFRange = sc.Range
			entry.Quantity = sc.Quantity
			entry.Unit = sc.Unit
			entry.Scale = sc.Scale
			entry.HasScale = true
		}
	default:
		sc, ok := vif.Scale(primary)
		entry.VIFRange = sc.Range
		if ok {
			entry.Quantity = sc.Quantity
			entry.Unit = sc.Unit
			entry.Scale = sc.Scale
			entry.HasScale = true
		}
		for _, b := range vifBytes[1:] {
			if c := vif.ClassifyCombinable(b); c != vif.CombinableNone {
				entry.Combinables = append(entry.Combinables, c)
			}
		}
	}

	return entry
}

// HasCombinable reports whether entry carries the given combinable VIFE.
func (e *DVEntry) HasCombinable(c vif.Combinable) bool {
	for _, x := range e.Combinables {
		if x == c {
			return true
		}
	}
	return false
}
