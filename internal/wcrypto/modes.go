package wcrypto

import "fmt"

// Magic2F2F is the two-byte marker that a successfully decrypted mode 5
// (and mode 7) payload must begin with.
var Magic2F2F = [2]byte{0x2F, 0x2F}

// Mode5Decrypt implements EN 13757 security mode 5: AES-128-CBC with an IV
// built from the M-field, A-field and the access counter repeated eight
// times. Short final frames are zero-padded to a block
// boundary before decryption. The caller must check HasMagic2F2F on the
// result to know whether decryption actually succeeded; a bad key
// produces plausible-looking garbage, not an error, because CBC mode
// cannot detect a wrong key on its own.
func Mode5Decrypt(key []byte, mField [2]byte, aField [6]byte, accessNumber byte, ciphertext []byte) ([]byte, error) {
	iv := make([]byte, 0, BlockSize)
	iv = append(iv, mField[:]...)
	iv = append(iv, aField[:]...)
	for i := 0; i < 8; i++ {
		iv = append(iv, accessNumber)
	}
	return CBCDecrypt(key, iv, PadZero(ciphertext))
}

// HasMagic2F2F reports whether plaintext begins with the 0x2F2F marker
// mode 5/7 telegrams always carry on success.
func HasMagic2F2F(plaintext []byte) bool {
	return len(plaintext) >= 2 && plaintext[0] == Magic2F2F[0] && plaintext[1] == Magic2F2F[1]
}

// Mode7Decrypt implements EN 13757 security mode 7: AES-128-CBC using a
// key derived per EN 13757-7 from the master key, manufacturer code and
// meter id (see DeriveMode7Key), with the same IV construction as mode 5.
func Mode7Decrypt(masterKey []byte, mField [2]byte, aField [6]byte, accessNumber byte, ciphertext []byte) ([]byte, error) {
	derived, err := DeriveMode7Key(masterKey, mField, aField)
	if err != nil {
		return nil, err
	}
	return Mode5Decrypt(derived, mField, aField, accessNumber, ciphertext)
}

// Mode13IV builds the AES-CTR counter block for EN 13757 security mode 13
// from the ELL header's M-field, A-field, CC (communication control) byte
// and SN (sequence number, 4 bytes), with a trailing one-byte block
// counter BC that the caller increments per 16-byte block decrypted.
func Mode13IV(mField [2]byte, aField [6]byte, cc byte, sn [4]byte, blockCounter byte) [BlockSize]byte {
	var iv [BlockSize]byte
	copy(iv[0:2], mField[:])
	copy(iv[2:8], aField[:])
	iv[8] = cc
	copy(iv[9:13], sn[:])
	iv[13] = 0
	iv[14] = 0
	iv[15] = blockCounter
	return iv
}

// Mode13Decrypt implements EN 13757 security mode 13: AES-128-CTR keyed
// directly by the configured meter key, counter block per Mode13IV.
func Mode13Decrypt(key []byte, mField [2]byte, aField [6]byte, cc byte, sn [4]byte, ciphertext []byte) ([]byte, error) {
	iv := Mode13IV(mField, aField, cc, sn, 0)
	return CTRDecrypt(key, iv[:], ciphertext)
}

// KamstrupC1IV builds the AES-CTR IV used by the Kamstrup C1 extended
// link layer variant: M|A|CC|SN|0|0|BC, with SN directly after CC. This
// is byte for byte the same layout that Mode13IV builds.
func KamstrupC1IV(mField [2]byte, aField [6]byte, cc byte, sn [4]byte, blockCounter byte) [BlockSize]byte {
	var iv [BlockSize]byte
	copy(iv[0:2], mField[:])
	copy(iv[2:8], aField[:])
	iv[8] = cc
	copy(iv[9:13], sn[:])
	iv[13] = 0
	iv[14] = 0
	iv[15] = blockCounter
	return iv
}

// KamstrupC1Decrypt implements the Kamstrup C1 AES-CTR variant.
func KamstrupC1Decrypt(key []byte, mField [2]byte, aField [6]byte, cc byte, sn [4]byte, ciphertext []byte) ([]byte, error) {
	iv := KamstrupC1IV(mField, aField, cc, sn, 0)
	return CTRDecrypt(key, iv[:], ciphertext)
}

// ValidateKeyLength returns a ConfigError-flavoured error if key is not a
// valid AES-128 key (a ConfigError: invalid key length).
func ValidateKeyLength(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("wcrypto: invalid key length %d, want %d", len(key), KeySize)
	}
	return nil
}
