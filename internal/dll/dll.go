// Package dll implements classification and field extraction of the M-Bus
// data link layer: short/long wired M-Bus frames, wireless
// wM-Bus frames, and the manufacturer-specific A-field quirks that must be
// untangled before the TPL/ELL layer can be parsed.
package dll

import "fmt"

// FrameType classifies the wire envelope of an inbound byte sequence.
type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameShortMBus
	FrameLongMBus
	FrameWireless
)

func (f FrameType) String() string {
	switch f {
	case FrameShortMBus:
		return "short-mbus"
	case FrameLongMBus:
		return "long-mbus"
	case FrameWireless:
		return "wireless"
	default:
		return "unknown"
	}
}

const (
	shortFrameStart = 0x10
	longFrameStart  = 0x68
	frameStop       = 0x16
)

// C-field values the parser must accept.
const (
	CSndNR  byte = 0x44
	CSndIR  byte = 0x46
	CSndNKE byte = 0x40
	CReqUD2 byte = 0x5B
	CRspUD  byte = 0x08
)

// Classify determines the frame envelope of raw, by inspecting the leading
// bytes. It does not validate checksums; that is the
// responsibility of the caller using mbusutil.CRC16EN13757 once the frame
// boundaries are known.
func Classify(raw []byte) (FrameType, error) {
	if len(raw) == 0 {
		return FrameUnknown, fmt.Errorf("dll: empty frame")
	}
	switch raw[0] {
	case shortFrameStart:
		if len(raw) < 5 {
			return FrameUnknown, fmt.Errorf("dll: short mbus frame too short: %d bytes", len(raw))
		}
		return FrameShortMBus, nil
	case longFrameStart:
		if len(raw) < 6 {
			return FrameUnknown, fmt.Errorf("dll: long mbus frame too short: %d bytes", len(raw))
		}
		return FrameLongMBus, nil
	default:
		// Wireless wM-Bus frames open with the total frame length (L-field),
		// not a fixed start byte; accept anything whose declared length is
		// consistent with what we received.
		l := int(raw[0])
		if l+1 > len(raw) {
			return FrameUnknown, fmt.Errorf("dll: wireless frame declares length %d but only %d bytes present", l, len(raw)-1)
		}
		return FrameWireless, nil
	}
}

// Fields holds the standard DLL addressing fields: L, C, 16-bit
// manufacturer code, and the 6-byte A-field
// (id(4) + version(1) + device-type(1)).
type Fields struct {
	L       byte
	C       byte
	Mfct    uint16
	AField  [6]byte
	ID      uint32 // BCD-decoded meter id, little-endian within A-field
	Version byte
	Type    byte
}

// ParseWireless extracts the DLL fields from a wireless wM-Bus frame body,
// where raw[0] is the L-field and the A-field immediately follows C and M.
func ParseWireless(raw []byte) (Fields, error) {
	if len(raw) < 10 {
		return Fields{}, fmt.Errorf("dll: wireless frame too short for DLL header: %d bytes", len(raw))
	}
	var f Fields
	f.L = raw[0]
	f.C = raw[1]
	f.Mfct = uint16(raw[2]) | uint16(raw[3])<<8
	copy(f.AField[:], raw[4:10])
	f.ID = bcdID(f.AField[0:4])
	f.Version = f.AField[4]
	f.Type = f.AField[5]
	return f, nil
}

// ParseShort extracts the DLL fields from a wired M-Bus short frame:
// 0x10, C, A, checksum, 0x16. Short frames carry no application payload
// (they are SND_NKE/REQ_UD2 control frames), so only C and the single-byte
// primary address are meaningful; Mfct, Version and Type are left zero.
func ParseShort(raw []byte) (Fields, error) {
	if len(raw) < 5 || raw[0] != shortFrameStart {
		return Fields{}, fmt.Errorf("dll: not a short mbus frame")
	}
	if raw[len(raw)-1] != frameStop {
		return Fields{}, fmt.Errorf("dll: short mbus frame missing stop byte")
	}
	f := Fields{C: raw[1]}
	f.ID = uint32(raw[2])
	return f, nil
}

// ParseLong extracts the DLL fields and the CI-prefixed application block
// from a wired M-Bus long frame: 0x68 L L 0x68, C, A, CI, user data,
// checksum, 0x16. L counts the bytes from C through the end of user data,
// so the returned block (CI onward) is raw[6 : 6+L-2]. As with ParseShort,
// the single-byte primary address is the only addressing information
// available; Mfct, Version and Type are left zero.
func ParseLong(raw []byte) (Fields, []byte, error) {
	if len(raw) < 6 || raw[0] != longFrameStart || raw[3] != longFrameStart {
		return Fields{}, nil, fmt.Errorf("dll: not a long mbus frame")
	}
	l := int(raw[1])
	if raw[2] != byte(l) {
		return Fields{}, nil, fmt.Errorf("dll: long mbus frame length fields disagree")
	}
	if l < 2 {
		return Fields{}, nil, fmt.Errorf("dll: long mbus frame length %d too short for C+A", l)
	}
	end := 6 + (l - 2)
	if len(raw) < end+2 {
		return Fields{}, nil, fmt.Errorf("dll: long mbus frame truncated: declares %d body bytes, have %d", l, len(raw)-6)
	}
	if raw[end+1] != frameStop {
		return Fields{}, nil, fmt.Errorf("dll: long mbus frame missing stop byte")
	}
	f := Fields{C: raw[4]}
	f.ID = uint32(raw[5])
	block := raw[6:end]
	return f, block, nil
}

func bcdID(b []byte) uint32 {
	var v uint32
	for i := len(b) - 1; i >= 0; i-- {
		hi := b[i] >> 4
		lo := b[i] & 0x0F
		v = v*100 + uint32(hi)*10 + uint32(lo)
	}
	return v
}

// ManufacturerCode packs a 3-letter manufacturer abbreviation into the
// 16-bit M-bus manufacturer code (each letter is 5 bits, A=1).
func ManufacturerCode(letters string) uint16 {
	if len(letters) != 3 {
		return 0
	}
	var v uint16
	for i := 0; i < 3; i++ {
		c := letters[i]
		if c < 'A' || c > 'Z' {
			return 0
		}
		v = v<<5 | uint16(c-'A'+1)
	}
	return v
}

// Well-known manufacturer codes involved in the Diehl A-field quirk.
var (
	MfctDME = ManufacturerCode("DME")
	MfctEWT = ManufacturerCode("EWT")
	MfctHYD = ManufacturerCode("HYD")
	MfctSAP = ManufacturerCode("SAP")
	MfctSPL = ManufacturerCode("SPL")
)

// IsDiehlManufacturer reports whether mfct is one of the manufacturers
// whose proprietary payloads carry the rotated A-field.
func IsDiehlManufacturer(mfct uint16) bool {
	switch mfct {
	case MfctDME, MfctEWT, MfctHYD, MfctSAP, MfctSPL:
		return true
	default:
		return false
	}
}

// ApplyDiehlRotation rotates version/type out of the standard A-field
// positions (4-5) into positions 8-9 of a manufacturer-specific payload:
// version and type bytes move from positions 4-5 to 8-9 before further
// parsing. payload is the manufacturer-specific content following the CI
// field; it is mutated in place when it is long enough to carry the
// rotated bytes, and returned for convenience.
func ApplyDiehlRotation(f *Fields, payload []byte) []byte {
	if len(payload) < 10 {
		// Too short to carry a rotated version/type; nothing to move.
		return payload
	}
	payload[8] = f.Version
	payload[9] = f.Type
	return payload
}

// ApplySAPPriosTransform forces the SAP PRIOS-standard version/type
// convention: version=0x00, type=0x07 (water).
func ApplySAPPriosTransform(f *Fields) {
	f.Version = 0x00
	f.Type = 0x07
}
