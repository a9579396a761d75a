package dex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/tick"
)

// TokenID identifies a token by its contract address.
type TokenID = common.Address

// AccountID identifies a ledger account.
type AccountID = common.Address

// PoolID is an unordered token pair stored in canonical order: Left is the
// bytewise larger address.
type PoolID struct {
	Left  TokenID
	Right TokenID
}

// NewPoolID orders the pair. transposed reports that a is the pool's right
// token, so requests in a's terms run on the Right side.
func NewPoolID(a, b TokenID) (id PoolID, transposed bool, err error) {
	if a == b {
		return PoolID{}, false, fmt.Errorf("pool %s/%s: %w", a.Hex(), b.Hex(), model.ErrTokenDuplicates)
	}
	if bytes.Compare(a[:], b[:]) < 0 {
		return PoolID{Left: b, Right: a}, true, nil
	}
	return PoolID{Left: a, Right: b}, false, nil
}

// Side returns the pool side paying token in.
func (id PoolID) Side(in TokenID) tick.Side {
	if in == id.Left {
		return tick.Left
	}
	return tick.Right
}

func (id PoolID) Tokens() tick.Pair[TokenID] {
	return tick.NewPair(id.Left, id.Right)
}

func (id PoolID) String() string {
	return id.Left.Hex() + ":" + id.Right.Hex()
}

func poolIDLess(a, b PoolID) bool {
	if c := bytes.Compare(a.Left[:], b.Left[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.Right[:], b.Right[:]) < 0
}

// ParseAddress converts a hex string into an address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses, skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		addr, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}
