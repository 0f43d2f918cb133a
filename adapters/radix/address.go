package radix

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
)

const (
	// CompressedPublicKeySize is the size of a compressed secp256k1 point
	CompressedPublicKeySize = 33

	// EntityVirtualSecp256k1Account is the entity type byte of a virtual account
	// controlled by a secp256k1 key
	EntityVirtualSecp256k1Account byte = 0xd1
)

// AddressCodec decodes bech32 and bech32m wallet addresses
type AddressCodec struct {
	allowedHRPs map[string]struct{}
}

// NewAddressCodec creates a codec. When hrps is empty any human-readable part is accepted.
func NewAddressCodec(hrps ...string) ports.AddressCodec {
	c := &AddressCodec{}
	if len(hrps) > 0 {
		c.allowedHRPs = make(map[string]struct{}, len(hrps))
		for _, hrp := range hrps {
			c.allowedHRPs[strings.ToLower(hrp)] = struct{}{}
		}
	}
	return c
}

// DecodePublicKey returns the compressed public key carried by the last 33 bytes of
// the address payload.
//
// The key is taken from the address as is. It is not checked against a key hash.
func (c *AddressCodec) DecodePublicKey(address string) ([]byte, error) {
	if address == "" {
		return nil, fmt.Errorf("empty address: %w", core.ErrAddressFormat)
	}

	hrp, data, _, err := bech32.DecodeGeneric(address)
	if err != nil {
		return nil, fmt.Errorf("failed to decode address: %v: %w", err, core.ErrAddressFormat)
	}
	if hrp == "" || len(data) == 0 {
		return nil, fmt.Errorf("empty prefix or payload: %w", core.ErrAddressFormat)
	}
	if c.allowedHRPs != nil {
		if _, ok := c.allowedHRPs[hrp]; !ok {
			return nil, fmt.Errorf("unexpected address prefix %q: %w", hrp, core.ErrAddressFormat)
		}
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(payload) == 0 {
		return nil, fmt.Errorf("failed to regroup address payload: %w", core.ErrAddressFormat)
	}
	if len(payload) < CompressedPublicKeySize {
		return nil, fmt.Errorf("address payload is %d bytes, need at least %d: %w",
			len(payload), CompressedPublicKeySize, core.ErrAddressFormat)
	}

	key := make([]byte, CompressedPublicKeySize)
	copy(key, payload[len(payload)-CompressedPublicKeySize:])
	return key, nil
}

// EncodeAddress builds a bech32m address whose payload is the entity type followed by
// the compressed public key. DecodePublicKey reverses it.
func EncodeAddress(hrp string, entityType byte, compressedKey []byte) (string, error) {
	if len(compressedKey) != CompressedPublicKeySize {
		return "", fmt.Errorf("public key must be %d bytes: %w", CompressedPublicKeySize, core.ErrSignatureFormat)
	}

	payload := make([]byte, 0, 1+len(compressedKey))
	payload = append(payload, entityType)
	payload = append(payload, compressedKey...)

	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to regroup payload: %w", err)
	}

	address, err := bech32.EncodeM(hrp, data)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return address, nil
}
