package projects

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// AddressDeriver computes the deterministic CREATE2 address a project contract
// would be deployed at by the factory
type AddressDeriver struct {
	factory  common.Address
	initHash common.Hash
}

func NewAddressDeriver(factory, initHash string) (*AddressDeriver, error) {
	if !common.IsHexAddress(factory) {
		return nil, fmt.Errorf("invalid factory address %q", factory)
	}
	h := strings.TrimPrefix(initHash, "0x")
	if len(h) != 64 {
		return nil, fmt.Errorf("init code hash must be 32 bytes")
	}
	return &AddressDeriver{
		factory:  common.HexToAddress(factory),
		initHash: common.HexToHash(initHash),
	}, nil
}

// Derive uses the project id, left padded to 32 bytes, as the salt
func (d *AddressDeriver) Derive(id uuid.UUID) string {
	var salt [32]byte
	copy(salt[16:], id[:])
	addr := crypto.CreateAddress2(d.factory, salt, d.initHash.Bytes())
	return strings.ToLower(addr.Hex())
}
