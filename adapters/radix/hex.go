package radix

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/rola/core"
)

// DecodeHex decodes hex with or without a 0x prefix
func DecodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty hex string: %w", core.ErrSignatureFormat)
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex: %v: %w", err, core.ErrSignatureFormat)
	}
	return b, nil
}
