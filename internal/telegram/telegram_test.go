package telegram

import (
	"testing"

	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/units"
	"github.com/serebryakov7/wmbusmeters/internal/vif"
)

func fixedClock() string { return "2026-08-01T00:00:00Z" }

// buildWirelessFrame assembles L, C, M, A, a long TPL header (no
// encryption, access=0, status=0, cfg=0), and content, then sets L to the
// correct remaining-byte count.
func buildWirelessFrame(mfct uint16, id uint32, version, typ byte, content []byte) []byte {
	header := []byte{
		0x00, dll.CSndNR,
		byte(mfct), byte(mfct >> 8),
		byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24),
		version, typ,
		0x72, 0x00, 0x00, 0x00, 0x00, // long TPL: CI, access, status, cfg(2)
	}
	raw := append(header, content...)
	raw[0] = byte(len(raw) - 1)
	return raw
}

func bcdID(decimal uint32) uint32 {
	// dll.ParseWireless decodes the A-field id as packed BCD; encode the
	// wanted decimal id back into that same packed representation.
	var out uint32
	for i := 0; i < 8; i++ {
		digit := decimal % 10
		decimal /= 10
		out |= uint32(digit) << (4 * i)
	}
	return out
}

func registerIperl(t *testing.T) *driver.Registry {
	t.Helper()
	reg := driver.NewRegistry()
	sen := dll.ManufacturerCode("SEN")
	err := reg.Register(driver.Info{
		Name:       "iperl",
		Detections: []driver.Tuple{{Mfct: sen, Media: 0x16, Version: 0x68}},
		Fields: []field.Info{
			{Name: "total_m3", DefaultUnit: units.M3, Matcher: field.Matcher{}.VR(vif.RangeVolume)},
		},
		DefaultFields: []string{"total_m3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestDecodeIperlVolume(t *testing.T) {
	sen := dll.ManufacturerCode("SEN")
	reg := registerIperl(t)

	// DIF=04 (32-bit int), VIF=13 (volume, scale 10^-3 m3), LE=0x0000075A=1882
	content := []byte{0x04, 0x13, 0x5A, 0x07, 0x00, 0x00}
	raw := buildWirelessFrame(sen, bcdID(33225544), 0x68, 0x16, content)

	rec, err := Decode(raw, reg, nil, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "OK" {
		t.Fatalf("status = %q, want OK", rec.Status)
	}
	if rec.Meter != "iperl" {
		t.Fatalf("meter = %q, want iperl", rec.Meter)
	}
	if len(rec.Fields) != 1 || rec.Fields[0].Name != "total_m3" {
		t.Fatalf("fields = %+v", rec.Fields)
	}
	if got, want := rec.Fields[0].Number, 1.882; got != want {
		t.Fatalf("total_m3 = %v, want %v", got, want)
	}
}

func TestDecodeUnknownDriverFallsBack(t *testing.T) {
	reg := driver.NewRegistry()
	raw := buildWirelessFrame(dll.ManufacturerCode("ZZZ"), bcdID(1), 0x01, 0x02, []byte{0x04, 0x13, 0x01, 0x00, 0x00, 0x00})

	rec, err := Decode(raw, reg, nil, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "UNKNOWN_DRIVER" {
		t.Fatalf("status = %q, want UNKNOWN_DRIVER", rec.Status)
	}
	if rec.RawHex == "" {
		t.Fatal("expected raw hex to be preserved for an unknown driver")
	}
}

func TestDecodeShortMBusFrameIsControlFrame(t *testing.T) {
	reg := driver.NewRegistry()
	raw := []byte{0x10, dll.CReqUD2, 0x01, 0x5C, 0x16}
	rec, err := Decode(raw, reg, nil, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "CONTROL_FRAME" {
		t.Fatalf("status = %q, want CONTROL_FRAME", rec.Status)
	}
	if rec.ID != "00000001" {
		t.Fatalf("id = %q, want 00000001", rec.ID)
	}
}

func TestDecodeLongMBusFrameUnknownDriver(t *testing.T) {
	reg := driver.NewRegistry()
	// 0x68 L L 0x68, C=RSP_UD, A=1, CI=long TPL (access=0, status=0, cfg=0).
	body := []byte{dll.CRspUD, 0x01, 0x72, 0x00, 0x00, 0x00, 0x00}
	raw := []byte{0x68, byte(len(body)), byte(len(body)), 0x68}
	raw = append(raw, body...)
	raw = append(raw, 0x00, 0x16) // checksum (unchecked here), stop byte
	rec, err := Decode(raw, reg, nil, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "UNKNOWN_DRIVER" {
		t.Fatalf("status = %q, want UNKNOWN_DRIVER", rec.Status)
	}
}

func TestDecodeFramingErrorReturnsError(t *testing.T) {
	reg := driver.NewRegistry()
	_, err := Decode([]byte{20, 1, 2, 3}, reg, nil, fixedClock)
	if err == nil {
		t.Fatal("expected a framing error for a truncated frame")
	}
}

func TestDecodeMissingKeyReportsNoKey(t *testing.T) {
	sen := dll.ManufacturerCode("SEN")
	reg := registerIperl(t)

	header := []byte{
		0x00, dll.CSndNR,
		byte(sen), byte(sen >> 8),
		0x44, 0x55, 0x22, 0x33,
		0x68, 0x16,
		0x72, 0x00, 0x00, 0x00, 0x05, // cfg high byte carries the mode bits
	}
	content := []byte{0x01, 0x02, 0x03, 0x04}
	raw := append(header, content...)
	raw[0] = byte(len(raw) - 1)

	rec, err := Decode(raw, reg, nil, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "NO_KEY" {
		t.Fatalf("status = %q, want NO_KEY", rec.Status)
	}
}
