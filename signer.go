package rola

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/layer-3/rola/adapters/radix"
)

// Signer signs challenges with a secp256k1 key the way a wallet does
type Signer struct {
	key *secp256k1.PrivateKey
}

// NewSigner creates a signer from a hex encoded 32 byte private key
func NewSigner(privateKeyHex string) (*Signer, error) {
	raw, err := radix.DecodeHex(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", secp256k1.PrivKeyBytesLen, len(raw))
	}
	return &Signer{key: secp256k1.PrivKeyFromBytes(raw)}, nil
}

// GenerateSigner creates a signer with a fresh random key
func GenerateSigner() (*Signer, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Signer{key: key}, nil
}

// PrivateKeyHex returns the private key as hex
func (s *Signer) PrivateKeyHex() string {
	return hex.EncodeToString(s.key.Serialize())
}

// PublicKey returns the 33 byte compressed public key
func (s *Signer) PublicKey() []byte {
	return s.key.PubKey().SerializeCompressed()
}

// PublicKeyHex returns the compressed public key as hex
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.PublicKey())
}

// Address returns the virtual account address carrying the public key
func (s *Signer) Address(hrp string) (string, error) {
	return radix.EncodeAddress(hrp, radix.EntityVirtualSecp256k1Account, s.PublicKey())
}

// Sign returns the hex encoded DER signature over the SHA-256 digest of challenge
func (s *Signer) Sign(challenge string) string {
	digest := sha256.Sum256([]byte(challenge))
	return hex.EncodeToString(ecdsa.Sign(s.key, digest[:]).Serialize())
}
