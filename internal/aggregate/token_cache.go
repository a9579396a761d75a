package aggregate

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenDecimalsCache caches token decimals by address.
type TokenDecimalsCache struct {
	mu   sync.RWMutex
	data map[common.Address]uint8
}

func NewTokenDecimalsCache() *TokenDecimalsCache {
	return &TokenDecimalsCache{data: make(map[common.Address]uint8)}
}

func (c *TokenDecimalsCache) Get(address common.Address) (uint8, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}

// Load adds hex address to decimals pairs.
func (c *TokenDecimalsCache) Load(decimals map[string]uint8) error {
	for token, d := range decimals {
		if !common.IsHexAddress(token) {
			return fmt.Errorf("invalid token address: %s", token)
		}
		c.Set(common.HexToAddress(token), d)
	}
	return nil
}
