package ports

// AddressCodec decodes wallet addresses into compressed public keys
type AddressCodec interface {
	DecodePublicKey(address string) ([]byte, error)
}

// SignatureVerifier checks a signature over a message against a public key
type SignatureVerifier interface {
	// DecodeHex decodes a hex encoded signature or public key
	DecodeHex(s string) ([]byte, error)
	Verify(publicKey []byte, message string, signature []byte) error
}
