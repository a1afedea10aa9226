// Package wcrypto implements the AES-128 primitives and EN 13757 security
// mode wrappers used to decrypt M-Bus/wM-Bus telegram payloads. Every
// function here is a pure transformation of (key, iv, ciphertext) to
// plaintext; there is no package-level mutable state, so the functions are
// safe to call concurrently from independent decode goroutines.
package wcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	// KeySize is the AES-128 key length in bytes; every M-Bus security
	// mode in this package uses 128-bit keys.
	KeySize = 16
	// BlockSize is the AES block size in bytes.
	BlockSize = 16
)

// ECBEncryptBlock encrypts exactly one 16-byte block with AES-128 under
// key, with no chaining. This is the raw primitive CTR-mode keystream
// generation is built from; general-purpose CTR decryption in
// this package uses crypto/cipher's CTR stream, which performs the same
// ECB-of-the-counter operation internally.
func ECBEncryptBlock(key, block []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("wcrypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(block) != BlockSize {
		return nil, fmt.Errorf("wcrypto: block must be %d bytes, got %d", BlockSize, len(block))
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, BlockSize)
	c.Encrypt(out, block)
	return out, nil
}

// CBCDecrypt decrypts ciphertext (a multiple of the AES block size) with
// AES-128-CBC under key and a 16-byte IV.
func CBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("wcrypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("wcrypto: iv must be %d bytes, got %d", BlockSize, len(iv))
	}
	if len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("wcrypto: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	if len(ciphertext) == 0 {
		return nil, nil
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// CTRDecrypt decrypts ciphertext of any length with AES-128-CTR under key
// and a 16-byte IV whose low-order bytes act as the block counter.
// Encryption and decryption are the same XOR-with-keystream operation.
func CTRDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("wcrypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("wcrypto: iv must be %d bytes, got %d", BlockSize, len(iv))
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCTR(c, iv).XORKeyStream(out, ciphertext)
	return out, nil
}

// PadZero pads b with trailing zero bytes up to the next multiple of
// BlockSize. Mode 5 frames that were truncated short of a full final block
// are padded this way before CBC decryption.
func PadZero(b []byte) []byte {
	rem := len(b) % BlockSize
	if rem == 0 {
		return b
	}
	out := make([]byte, len(b)+(BlockSize-rem))
	copy(out, b)
	return out
}
