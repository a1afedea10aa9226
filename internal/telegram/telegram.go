// Package telegram implements the Telegram value type and the end-to-end
// decode orchestrator: frame codec -> link layer -> TPL/ELL decrypt -> DV
// parser -> driver dispatch -> field extractor -> formula fields -> output
// record.
package telegram

import (
	"fmt"

	"github.com/serebryakov7/wmbusmeters/common"
	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/dvparser"
	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/formula"
	"github.com/serebryakov7/wmbusmeters/internal/lookup"
	"github.com/serebryakov7/wmbusmeters/internal/tpl"
)

// Telegram is one inbound message, carrying everything produced while
// walking it through the pipeline.
type Telegram struct {
	Raw          []byte
	DLL          dll.Fields
	TPLHeader    tpl.Header
	Payload      []byte
	Content      []byte
	Explanations []dvparser.Explanation
	Entries      []*dvparser.DVEntry
	Index        map[string]*dvparser.DVEntry
	DecryptState tpl.State
	Simulated    bool
	Handled      bool
}

// KeyLookup resolves the AES key configured for a given meter, or nil if
// none is configured: crypto keys are owned by the meter configuration
// record that is passed into the decode.
type KeyLookup func(mfct uint16, id uint32) []byte

// Clock returns the current time formatted as an ISO-8601 UTC timestamp
// with a trailing Z. Decode takes it as a parameter, rather than calling
// time.Now() directly, so the record timestamp comes from the caller. The
// mkradio3 driver still reads the current year from time.Now() to date
// its readings.
type Clock func() string

// CommonStatus is the shared (non-manufacturer-specific) TPL status
// translator consulted by every driver.
var CommonStatus = lookup.Lookup{Rules: []lookup.Rule{{
	Name: "ERROR", Type: lookup.BitToString, Mask: 0xFF,
	Maps: []lookup.Map{
		{From: 0x01, To: "DRY", Test: lookup.Set},
		{From: 0x02, To: "REVERSE", Test: lookup.Set},
		{From: 0x04, To: "LEAK", Test: lookup.Set},
		{From: 0x08, To: "BURST", Test: lookup.Set},
	},
}}}

// Decode runs the full pipeline over raw. It returns (nil, err) only on a
// framing failure, which is required to be a silent drop ("CRC mismatch:
// drop frame, log once"); every other recoverable failure still produces
// exactly one OutputRecord carrying a descriptive status.
//
// Three DLL envelopes are accepted: wireless wM-Bus frames, and the two
// wired M-Bus frame shapes (short control frames such as SND_NKE/REQ_UD2,
// and long frames such as RSP_UD carrying a TPL-style application block).
func Decode(raw []byte, reg *driver.Registry, keys KeyLookup, now Clock) (*common.OutputRecord, error) {
	ft, err := dll.Classify(raw)
	if err != nil {
		return nil, fmt.Errorf("telegram: framing error: %w", err)
	}

	t := &Telegram{Raw: raw}

	switch ft {
	case dll.FrameShortMBus:
		t.DLL, err = dll.ParseShort(raw)
		if err != nil {
			return nil, fmt.Errorf("telegram: framing error: %w", err)
		}
		return &common.OutputRecord{
			Meter:     "control-frame",
			Name:      "control-frame",
			ID:        fmt.Sprintf("%08d", t.DLL.ID),
			Timestamp: now(),
			RawHex:    fmt.Sprintf("%X", raw),
			Status:    string(common.StatusControlFrame),
		}, nil

	case dll.FrameLongMBus:
		var block []byte
		t.DLL, block, err = dll.ParseLong(raw)
		if err != nil {
			return nil, fmt.Errorf("telegram: framing error: %w", err)
		}
		const longFrameBlockOffset = 6 // 0x68, L, L, 0x68, C, A precede the CI-prefixed block
		return decodeBlock(t, reg, keys, now, block, longFrameBlockOffset)

	case dll.FrameWireless:
		t.DLL, err = dll.ParseWireless(raw)
		if err != nil {
			return nil, fmt.Errorf("telegram: framing error: %w", err)
		}

		const dllHeaderLen = 10 // L, C, M(2), A(6)
		if len(raw) <= dllHeaderLen {
			return nil, fmt.Errorf("telegram: framing error: no TPL block after DLL header")
		}
		block := raw[dllHeaderLen:]

		if dll.IsDiehlManufacturer(t.DLL.Mfct) && block[0] >= tpl.CIManufacturerLow && block[0] <= tpl.CIManufacturerHigh {
			dll.ApplyDiehlRotation(&t.DLL, block[1:])
		}
		return decodeBlock(t, reg, keys, now, block, dllHeaderLen)

	default:
		return nil, fmt.Errorf("telegram: framing error: unrecognized frame type %s", ft)
	}
}

// decodeBlock runs the TPL/ELL-onward half of the pipeline shared by
// wireless frames and wired long M-Bus frames: block starts at the CI
// field.
func decodeBlock(t *Telegram, reg *driver.Registry, keys KeyLookup, now Clock, block []byte, blockOffset int) (*common.OutputRecord, error) {
	var err error
	t.TPLHeader, err = tpl.ParseHeader(block)
	if err != nil {
		return nil, fmt.Errorf("telegram: framing error: %w", err)
	}
	t.Payload = block[t.TPLHeader.HeaderLen:]

	rec := &common.OutputRecord{
		Media:     fmt.Sprintf("%02X", t.DLL.Type),
		ID:        fmt.Sprintf("%08d", t.DLL.ID),
		Timestamp: now(),
		RawHex:    fmt.Sprintf("%X", t.Raw),
	}

	info, ok := reg.Resolve(t.DLL.Mfct, uint16(t.DLL.Type), uint16(t.DLL.Version))
	if !ok {
		rec.Meter = "unknown"
		rec.Name = "unknown"
		rec.Status = string(common.StatusUnknownDriver)
		return rec, nil
	}
	rec.Meter = info.Name
	rec.Name = info.Name

	var key []byte
	if keys != nil {
		key = keys(t.DLL.Mfct, t.DLL.ID)
	}

	decResult := tpl.Decrypt(t.TPLHeader, t.DLL, key, t.Payload)
	t.DecryptState = decResult.State
	t.Content = decResult.Plaintext

	if t.DecryptState == tpl.StateFailed {
		if key == nil {
			rec.Status = string(common.StatusNoKey)
		} else {
			rec.Status = string(common.StatusDecryptionFailed)
		}
		return rec, nil
	}

	if info.ProcessContent != nil {
		values, handled, err := info.ProcessContent(t.Content)
		if handled {
			if err != nil {
				rec.Status = string(common.StatusPartialParse)
			} else {
				rec.Status = string(common.StatusOK)
			}
			rec.Fields = toFieldValues(values)
			return rec, nil
		}
	}

	res, parseErr := dvparser.Parse(t.Content, blockOffset+t.TPLHeader.HeaderLen)
	t.Entries, t.Index, t.Explanations = res.Entries, res.Index, res.Explanations

	statusCtx := field.StatusContext{TPLStatus: t.TPLHeader.Status, MfctTranslator: info.MfctStatus, CommonTranslator: CommonStatus}
	values, _ := field.Extract(info.Fields, t.Entries, t.Index, statusCtx)
	values = evaluateFormulas(info.Fields, values)

	rec.Fields = toFieldValues(values)
	if parseErr != nil {
		rec.Status = string(common.StatusPartialParse)
	} else {
		rec.Status = string(common.StatusOK)
	}
	t.Handled = true
	return rec, nil
}

func toFieldValues(values []field.Value) []common.FieldValue {
	out := make([]common.FieldValue, 0, len(values))
	for _, v := range values {
		out = append(out, common.FieldValue{
			Name: v.Name, Number: v.Number, Text: v.Text, IsText: v.IsText, Unit: v.Unit.String(),
		})
	}
	return out
}

// evaluateFormulas runs calculator fields after raw fields, resolving
// identifiers against the raw fields already extracted.
func evaluateFormulas(infos []field.Info, values []field.Value) []field.Value {
	byName := map[string]field.Value{}
	for _, v := range values {
		byName[v.Name] = v
	}
	lookupFn := func(name string) (formula.Value, bool) {
		v, ok := byName[name]
		if !ok || v.IsText {
			return formula.Value{}, false
		}
		return formula.Value{Number: v.Number, Unit: v.Unit, HasUnit: true}, true
	}
	for _, fi := range infos {
		if fi.Calc == "" {
			continue
		}
		result, err := formula.Evaluate(fi.Calc, lookupFn)
		if err != nil {
			continue
		}
		v := field.Value{Name: fi.Name, Number: result.Number, Unit: fi.DefaultUnit}
		values = append(values, v)
		byName[fi.Name] = v
	}
	return values
}
