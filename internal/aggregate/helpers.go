package aggregate

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/model"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeFeeRates(fee0 *big.Int, fee1 *big.Int, tvl0 *big.Int, tvl1 *big.Int) (*string, *string) {
	var feeRate0 *string
	var feeRate1 *string

	if rate := computeRateFromInt(fee0, tvl0); rate != "" {
		feeRate0 = &rate
	}
	if rate := computeRateFromInt(fee1, tvl1); rate != "" {
		feeRate1 = &rate
	}
	return feeRate0, feeRate1
}

func computeRateFromInt(fee *big.Int, tvl *big.Int) string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, tvl)
	return rat.FloatString(ratioScale)
}

// computeAPR annualizes the fee rate earned over windowSeconds. With fees on
// both sides the two rates are averaged.
func computeAPR(feeRate0 *string, feeRate1 *string, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	var rates []*big.Rat
	for _, r := range []*string{feeRate0, feeRate1} {
		if r == nil {
			continue
		}
		rat, ok := new(big.Rat).SetString(*r)
		if !ok {
			return nil
		}
		rates = append(rates, rat)
	}
	if len(rates) == 0 {
		return nil
	}
	rate := new(big.Rat)
	for _, r := range rates {
		rate.Add(rate, r)
	}
	rate.Quo(rate, big.NewRat(int64(len(rates)), 1))

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rate, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

// Format renders the amounts of a summary with the known token decimals.
// Tokens without decimals keep their raw amounts.
func Format(s model.PoolSummary, decimals *TokenDecimalsCache) model.PoolSummary {
	d0, _ := decimals.Get(common.HexToAddress(s.Token0))
	d1, _ := decimals.Get(common.HexToAddress(s.Token1))
	for _, field := range []struct {
		value    *string
		decimals uint8
	}{
		{&s.Volume0, d0}, {&s.Fee0, d0}, {&s.Reserve0, d0},
		{&s.Volume1, d1}, {&s.Fee1, d1}, {&s.Reserve1, d1},
	} {
		v, err := parseBigInt(*field.value)
		if err != nil {
			continue
		}
		*field.value = formatTokenAmount(v, field.decimals)
	}
	return s
}
