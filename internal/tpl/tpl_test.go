package tpl

import (
	"bytes"
	"testing"

	"github.com/serebryakov7/wmbusmeters/internal/dll"
	"github.com/serebryakov7/wmbusmeters/internal/wcrypto"
)

func TestParseHeaderLongTPLMode5(t *testing.T) {
	// CI=0x72, access=0x2A, status=0x00, config word selects mode 5 (cfg bits 8-12 = 5).
	block := []byte{CILongTPL, 0x2A, 0x00, 0x00, 0x05}
	h, err := ParseHeader(block)
	if err != nil {
		t.Fatal(err)
	}
	if h.Mode != SecurityMode5 {
		t.Fatalf("Mode = %v, want SecurityMode5", h.Mode)
	}
	if h.AccessNumber != 0x2A {
		t.Fatalf("AccessNumber = %02X, want 2A", h.AccessNumber)
	}
	if h.HeaderLen != 5 {
		t.Fatalf("HeaderLen = %d, want 5", h.HeaderLen)
	}
}

func TestParseHeaderShortTPL(t *testing.T) {
	block := []byte{CIShortTPL, 0x01, 0x00, 0x00}
	h, err := ParseHeader(block)
	if err != nil {
		t.Fatal(err)
	}
	if h.HeaderLen != 4 {
		t.Fatalf("HeaderLen = %d, want 4", h.HeaderLen)
	}
}

func TestParseHeaderUnknownCI(t *testing.T) {
	if _, err := ParseHeader([]byte{0x00}); err == nil {
		t.Fatal("expected error for unrecognized CI")
	}
}

func TestParseHeaderManufacturerSpecificRange(t *testing.T) {
	h, err := ParseHeader([]byte{0xA5})
	if err != nil {
		t.Fatal(err)
	}
	if h.Mode != SecurityNone || h.HeaderLen != 1 {
		t.Fatalf("h = %+v", h)
	}
}

func TestDecryptNoKeyFails(t *testing.T) {
	h := Header{Mode: SecurityMode5, AccessNumber: 0x01}
	res := Decrypt(h, dll.Fields{}, nil, make([]byte, 16))
	if res.State != StateFailed {
		t.Fatalf("State = %v, want StateFailed", res.State)
	}
}

func TestDecryptNoSecuritySkipsStraightThrough(t *testing.T) {
	h := Header{Mode: SecurityNone}
	plain := []byte{1, 2, 3}
	res := Decrypt(h, dll.Fields{}, nil, plain)
	if res.State != StateDecrypted || !bytes.Equal(res.Plaintext, plain) {
		t.Fatalf("res = %+v", res)
	}
}

func TestDecryptMode5RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, wcrypto.KeySize)
	fields := dll.Fields{Mfct: 0x2324, AField: [6]byte{1, 2, 3, 4, 5, 6}}
	mField := [2]byte{byte(fields.Mfct), byte(fields.Mfct >> 8)}
	accessNumber := byte(0x07)

	plaintext := append([]byte{0x2F, 0x2F}, bytes.Repeat([]byte{0x00}, 14)...)
	iv := make([]byte, 0, 16)
	iv = append(iv, mField[:]...)
	iv = append(iv, fields.AField[:]...)
	for i := 0; i < 8; i++ {
		iv = append(iv, accessNumber)
	}
	ciphertext := encryptCBCForTest(t, key, iv, plaintext)

	h := Header{Mode: SecurityMode5, AccessNumber: accessNumber}
	res := Decrypt(h, fields, key, ciphertext)
	if res.State != StateDecrypted {
		t.Fatalf("State = %v, want StateDecrypted", res.State)
	}
	if !bytes.Equal(res.Plaintext, plaintext) {
		t.Fatalf("Plaintext = %X, want %X", res.Plaintext, plaintext)
	}
}

func TestDecryptMode5BadMagicFails(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, wcrypto.KeySize)
	wrongKey := bytes.Repeat([]byte{0x22}, wcrypto.KeySize)
	fields := dll.Fields{Mfct: 0x2324, AField: [6]byte{1, 2, 3, 4, 5, 6}}
	mField := [2]byte{byte(fields.Mfct), byte(fields.Mfct >> 8)}
	accessNumber := byte(0x07)

	plaintext := append([]byte{0x2F, 0x2F}, bytes.Repeat([]byte{0x00}, 14)...)
	iv := make([]byte, 0, 16)
	iv = append(iv, mField[:]...)
	iv = append(iv, fields.AField[:]...)
	for i := 0; i < 8; i++ {
		iv = append(iv, accessNumber)
	}
	ciphertext := encryptCBCForTest(t, key, iv, plaintext)

	h := Header{Mode: SecurityMode5, AccessNumber: accessNumber}
	res := Decrypt(h, fields, wrongKey, ciphertext)
	if res.State != StateFailed {
		t.Fatalf("State = %v, want StateFailed", res.State)
	}
}

func encryptCBCForTest(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	out := make([]byte, len(plaintext))
	prev := iv
	for i := 0; i < len(plaintext); i += wcrypto.BlockSize {
		block := make([]byte, wcrypto.BlockSize)
		for j := 0; j < wcrypto.BlockSize; j++ {
			block[j] = plaintext[i+j] ^ prev[j]
		}
		enc, err := wcrypto.ECBEncryptBlock(key, block)
		if err != nil {
			t.Fatal(err)
		}
		copy(out[i:i+wcrypto.BlockSize], enc)
		prev = enc
	}
	return out
}
