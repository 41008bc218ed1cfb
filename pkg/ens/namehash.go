package ens

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// FarmerName returns the subdomain issued to a vetted farmer, built from the
// first six hex digits of the wallet address
func FarmerName(address, parent string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(addr, "0x") || len(addr) < 8 {
		return "", fmt.Errorf("address too short for ENS label: %q", address)
	}
	return fmt.Sprintf("farmer-%s.%s", addr[2:8], parent), nil
}

// Namehash computes the EIP-137 node hash of a dotted name
func Namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}

	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := keccak(labels[i])
		node = keccak256(node[:], labelHash[:])
	}
	return node
}

// NamehashHex returns the 0x prefixed hex form of Namehash
func NamehashHex(name string) string {
	node := Namehash(name)
	return "0x" + hex.EncodeToString(node[:])
}

func keccak(s string) [32]byte {
	return keccak256([]byte(s))
}

func keccak256(parts ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
