package field

import (
	"math"
	"strconv"
	"strings"

	"github.com/serebryakov7/wmbusmeters/internal/dvparser"
	"github.com/serebryakov7/wmbusmeters/internal/lookup"
	"github.com/serebryakov7/wmbusmeters/internal/mbusutil"
	"github.com/serebryakov7/wmbusmeters/internal/units"
)

// StatusContext carries what's needed to resolve include_tpl_status /
// join_tpl_status fields.
type StatusContext struct {
	TPLStatus        byte
	MfctTranslator   lookup.Lookup
	CommonTranslator lookup.Lookup
}

// Extract runs the field extraction algorithm over infos in declaration
// order, against entries/index produced by dvparser.Parse. Fields with no
// matching entry are silently omitted from output and nothing is logged;
// callers that want a debug trace should log omissions themselves using
// the returned omitted-name slice.
func Extract(infos []Info, entries []*dvparser.DVEntry, index map[string]*dvparser.DVEntry, sc StatusContext) (values []Value, omitted []string) {
	for _, fi := range infos {
		if fi.DifVifKey != "" {
			e, ok := index[fi.DifVifKey]
			if !ok {
				omitted = append(omitted, fi.Name)
				continue
			}
			values = append(values, extractOne(fi, e, fi.Name, sc))
			continue
		}

		if strings.Contains(fi.Name, "{storage_counter") {
			lo, hi := fi.Matcher.StorageLo, fi.Matcher.StorageHi
			found := false
			for n := lo; n <= hi; n++ {
				m := fi.Matcher
				m.StorageLo, m.StorageHi, m.HasStorageRange = n, n, true
				e := findFirst(entries, m)
				if e == nil {
					continue
				}
				found = true
				values = append(values, extractOne(fi, e, expandStorageCounter(fi.Name, n), sc))
			}
			if !found && !fi.Optional {
				omitted = append(omitted, fi.Name)
			}
			continue
		}

		e := findFirst(entries, fi.Matcher)
		if e == nil {
			if !fi.Optional {
				omitted = append(omitted, fi.Name)
			}
			continue
		}
		values = append(values, extractOne(fi, e, fi.Name, sc))
	}
	return values, omitted
}

// expandStorageCounter replaces {storage_counter} and
// {storage_counter-Ncounter} placeholders with the storage number and its
// offset form.
func expandStorageCounter(name string, n int) string {
	out := strings.ReplaceAll(name, "{storage_counter}", strconv.Itoa(n))
	for {
		idx := strings.Index(out, "{storage_counter-")
		if idx < 0 {
			break
		}
		end := strings.Index(out[idx:], "}")
		if end < 0 {
			break
		}
		spec := out[idx+len("{storage_counter-") : idx+end]
		offset, err := strconv.Atoi(strings.TrimSuffix(spec, "counter"))
		if err != nil {
			offset = 0
		}
		out = out[:idx] + strconv.Itoa(n-offset) + out[idx+end+1:]
	}
	return out
}

func findFirst(entries []*dvparser.DVEntry, m Matcher) *dvparser.DVEntry {
	for _, e := range entries {
		if m.Matches(e) {
			return e
		}
	}
	return nil
}

func extractOne(fi Info, e *dvparser.DVEntry, name string, sc StatusContext) Value {
	if fi.Lookup != nil {
		raw := rawUint(e)
		return Value{Name: name, IsText: true, Text: fi.Lookup.Translate(raw), Offset: e.Offset}
	}

	raw := rawSigned(e, fi.Signed)
	number := raw
	if e.HasScale {
		number = raw * e.Scale
		// A negative power of ten is applied as a division by its exact
		// integer divisor, so 1882 at 10^-3 yields 1.882.
		if inv := math.Round(1 / e.Scale); e.Scale < 1 && inv*e.Scale == 1 {
			number = raw / inv
		}
	}
	if e.Unit != fi.DefaultUnit && units.CanConvert(e.Unit, fi.DefaultUnit) {
		number = units.Convert(number, e.Unit, fi.DefaultUnit)
	}

	v := Value{Name: name, Number: number, Unit: fi.DefaultUnit, Offset: e.Offset}

	if fi.IncludeTPLStatus || fi.JoinTPLStatus {
		status := JoinStatus(sc.MfctTranslator, sc.CommonTranslator, sc.TPLStatus)
		v.IsText = true
		v.Text = status
	}
	return v
}

func rawUint(e *dvparser.DVEntry) uint64 {
	v, err := mbusutil.LEUint(e.RawBytes, 0, len(e.RawBytes))
	if err != nil {
		return 0
	}
	return v
}

func rawSigned(e *dvparser.DVEntry, signed bool) float64 {
	if !signed {
		v, err := mbusutil.LEUint(e.RawBytes, 0, len(e.RawBytes))
		if err != nil {
			return 0
		}
		return float64(v)
	}
	v, err := mbusutil.LEInt(e.RawBytes, 0, len(e.RawBytes))
	if err != nil {
		return 0
	}
	return float64(v)
}

// JoinStatus concatenates TPL status translations: the
// manufacturer-specific translator and the common translator each
// translate the TPL status byte; their outputs are whitespace-joined and
// de-duplicated, falling back to "OK" when the combined set is empty.
func JoinStatus(mfct, common lookup.Lookup, status byte) string {
	seen := map[string]bool{}
	var tokens []string
	for _, s := range []string{mfct.Translate(uint64(status)), common.Translate(uint64(status))} {
		for _, tok := range strings.Fields(s) {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	if len(tokens) == 0 {
		return "OK"
	}
	return strings.Join(tokens, " ")
}
