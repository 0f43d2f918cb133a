package radix

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"
)

const testChallenge = "deadbeef00112233445566778899aabb"

func testPrivateKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	raw, err := hex.DecodeString("c9afa9d845ba75166b5c215767b1d6934e50c3db36e89b127b8a622b120f6721")
	require.NoError(t, err)
	return secp256k1.PrivKeyFromBytes(raw)
}

func signDER(key *secp256k1.PrivateKey, message string) []byte {
	digest := sha256.Sum256([]byte(message))
	return ecdsa.Sign(key, digest[:]).Serialize()
}
