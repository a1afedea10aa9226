package mbusutil

import (
	"strings"
	"testing"
)

func TestCRC16EN13757ReferenceVector(t *testing.T) {
	got := CRC16EN13757([]byte("123456789"))
	if got != 0xC2B7 {
		t.Fatalf("CRC16EN13757(\"123456789\") = %04X, want C2B7", got)
	}
}

func TestHexRoundTrip(t *testing.T) {
	cases := []string{"", "00", "DEADBEEF", "0123456789ABCDEF", "2D442D2C5768663230"}
	for _, s := range cases {
		bin, err := Hex2Bin(s)
		if err != nil {
			t.Fatalf("Hex2Bin(%q): %v", s, err)
		}
		got := Bin2Hex(bin)
		if got != strings.ToUpper(s) {
			t.Fatalf("Bin2Hex(Hex2Bin(%q)) = %q, want %q", s, got, strings.ToUpper(s))
		}
	}
}

func TestHex2BinOddLength(t *testing.T) {
	if _, err := Hex2Bin("ABC"); err == nil {
		t.Fatal("expected error for odd-length hex string")
	}
}

func TestHex2BinInvalidDigit(t *testing.T) {
	if _, err := Hex2Bin("ZZ"); err == nil {
		t.Fatal("expected error for invalid hex digit")
	}
}

func TestBCDRoundTrip(t *testing.T) {
	for n := uint64(0); n <= 99999999; n += 137 {
		enc := Bin2BCD(n, 4)
		got := BCD2Bin(enc)
		if got != n {
			t.Fatalf("BCD2Bin(Bin2BCD(%d)) = %d", n, got)
		}
	}
	// Endpoints explicitly, since the stride above may skip them.
	for _, n := range []uint64{0, 99999999} {
		if got := BCD2Bin(Bin2BCD(n, 4)); got != n {
			t.Fatalf("BCD2Bin(Bin2BCD(%d)) = %d", n, got)
		}
	}
}

func TestLEUint(t *testing.T) {
	b := []byte{0x44, 0x33, 0x22, 0x11}
	v, err := LEUint(b, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x11223344 {
		t.Fatalf("LEUint = %x, want 11223344", v)
	}
}

func TestLEUintOutOfRange(t *testing.T) {
	b := []byte{0x01, 0x02}
	if _, err := LEUint(b, 0, 4); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestLEIntSignHandling(t *testing.T) {
	// -1 in 16-bit two's complement little-endian.
	b := []byte{0xFF, 0xFF}
	v, err := LEInt(b, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Fatalf("LEInt = %d, want -1", v)
	}
}
