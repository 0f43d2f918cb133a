package radix

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
)

// Secp256k1Verifier verifies DER encoded ECDSA signatures over the SHA-256 digest of
// the message
type Secp256k1Verifier struct{}

// NewSignatureVerifier creates a secp256k1 signature verifier
func NewSignatureVerifier() ports.SignatureVerifier {
	return Secp256k1Verifier{}
}

// Verify checks signature against a single SHA-256 round over message.
// Malformed input fails with core.ErrSignatureFormat, a mismatch with core.ErrSignatureInvalid.
func (Secp256k1Verifier) Verify(publicKey []byte, message string, signature []byte) error {
	if len(publicKey) != CompressedPublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d: %w",
			CompressedPublicKeySize, len(publicKey), core.ErrSignatureFormat)
	}

	pub, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return fmt.Errorf("failed to parse public key: %v: %w", err, core.ErrSignatureFormat)
	}

	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return fmt.Errorf("failed to parse DER signature: %v: %w", err, core.ErrSignatureFormat)
	}

	digest := sha256.Sum256([]byte(message))
	if !sig.Verify(digest[:], pub) {
		return core.ErrSignatureInvalid
	}

	return nil
}

// DecodeHex decodes hex with or without a 0x prefix
func (Secp256k1Verifier) DecodeHex(s string) ([]byte, error) {
	return DecodeHex(s)
}
