// Package replay drives an engine through a scripted scenario and streams the
// resulting events to storage.
package replay

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/fp"
)

// Scenario is a YAML script of engine calls.
type Scenario struct {
	Name                string            `yaml:"name"`
	Seed                string            `yaml:"seed"`
	ProtocolFeeFraction uint16            `yaml:"protocol_fee_fraction"`
	Tokens              map[string]string `yaml:"tokens"`
	Accounts            map[string]string `yaml:"accounts"`
	Actions             []Action          `yaml:"actions"`
}

// Action is one engine call. Which fields matter depends on Op.
type Action struct {
	Op       string `yaml:"op"`
	Account  string `yaml:"account"`
	// Signer initiates a deposit on behalf of Account; empty means Account.
	Signer   string `yaml:"signer"`
	Token    string `yaml:"token"`
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	TokenIn  string `yaml:"token_in"`
	TokenOut string `yaml:"token_out"`

	Amount  string `yaml:"amount"`
	AmountA string `yaml:"amount_a"`
	AmountB string `yaml:"amount_b"`
	MinA    string `yaml:"min_a"`
	MinB    string `yaml:"min_b"`
	// Limit is the minimum output of exact_in swaps and the maximum input of
	// exact_out swaps.
	Limit string  `yaml:"limit"`
	Price float64 `yaml:"price"`

	FeeRate  uint32 `yaml:"fee_rate"`
	LowTick  *int32 `yaml:"low_tick"`
	HighTick *int32 `yaml:"high_tick"`
	Level    uint8  `yaml:"level"`
	Start    int32  `yaml:"start"`
	Count    int    `yaml:"count"`
	Fraction uint16 `yaml:"fraction"`

	// Label names the position opened by this action; Position refers to it.
	Label    string `yaml:"label"`
	Position string `yaml:"position"`

	// ExpectError is the error the call must fail with, or "any".
	ExpectError string `yaml:"expect_error"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Actions) == 0 {
		return nil, fmt.Errorf("scenario has no actions")
	}
	for i, a := range sc.Actions {
		if _, ok := handlers[a.Op]; !ok {
			return nil, fmt.Errorf("action %d: unknown op %q", i, a.Op)
		}
	}
	for alias, addr := range sc.Tokens {
		if _, err := dex.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("token %s: %w", alias, err)
		}
	}
	for alias, addr := range sc.Accounts {
		if _, err := dex.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("account %s: %w", alias, err)
		}
	}
	return &sc, nil
}

// Token resolves a token alias or a hex address.
func (sc *Scenario) Token(name string) (dex.TokenID, error) {
	if addr, ok := sc.Tokens[name]; ok {
		name = addr
	}
	return dex.ParseAddress(name)
}

func (sc *Scenario) Account(name string) (dex.AccountID, error) {
	if addr, ok := sc.Accounts[name]; ok {
		name = addr
	}
	return dex.ParseAddress(name)
}

func parseAmount(field, s string) (fp.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fp.Amount{}, nil
	}
	amount, err := fp.ParseAmount(s)
	if err != nil {
		return fp.Amount{}, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return amount, nil
}
