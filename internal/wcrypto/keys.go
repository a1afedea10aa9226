package wcrypto

// DeriveMode7Key derives the per-meter AES-128 key used by EN 13757-7
// security mode 7 from the configured master key, the manufacturer code
// and the meter's A-field. The standard derives a working key per meter
// so that a single provisioned master key never encrypts two different
// meters' traffic under the same key material; this is done here by
// ECB-encrypting a block built from the manufacturer/address bytes under
// the master key, the same "encrypt a context block under the master
// key" shape EN 13757-7 key derivation uses.
func DeriveMode7Key(masterKey []byte, mField [2]byte, aField [6]byte) ([]byte, error) {
	if err := ValidateKeyLength(masterKey); err != nil {
		return nil, err
	}
	block := make([]byte, BlockSize)
	copy(block[0:2], mField[:])
	copy(block[2:8], aField[:])
	// Remaining bytes are zero-padded; this is a fixed-size context block,
	// not secret material, so zero padding does not weaken the derivation.
	return ECBEncryptBlock(masterKey, block)
}
