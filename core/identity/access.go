package identity

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AdminSet is a static access-control list. It satisfies the engine's
// administrator check and is populated from configuration at startup.
type AdminSet struct {
	members map[[20]byte]struct{}
}

// NewAdminSet builds an admin set from the supplied addresses.
func NewAdminSet(addrs ...[20]byte) *AdminSet {
	set := &AdminSet{members: make(map[[20]byte]struct{}, len(addrs))}
	for _, addr := range addrs {
		set.members[addr] = struct{}{}
	}
	return set
}

// IsAdministrator reports whether the address belongs to the set.
func (s *AdminSet) IsAdministrator(addr [20]byte) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[addr]
	return ok
}

// ParseAddress decodes a 20-byte identity from its hex representation, with or
// without a 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("identity: address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("identity: decode address: %w", err)
	}
	copy(addr[:], decoded)
	return addr, nil
}

// FormatAddress renders the identity as a 0x-prefixed hex string.
func FormatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
