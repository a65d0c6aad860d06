package assets

import (
	"encoding/hex"
	"fmt"
)

func encodeAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func decodeAddr(raw string) ([20]byte, error) {
	var addr [20]byte
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("assets: decode address: %w", err)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("assets: address must be 20 bytes (got %d)", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}
