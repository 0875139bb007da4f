// Package ledger derives balances and positions by replaying a user's fill
// history over a fixed seed allocation. Everything here is pure: no stored
// state is mutated, so recomputing on every read is safe.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

// quoteAssets are the known quote suffixes, tried in order.
var quoteAssets = []string{"USDT", "BTC", "ETH", "BNB"}

// SeedBalances is the baseline allocation every user starts from.
func SeedBalances() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(10000),
		"BTC":  decimal.NewFromInt(1),
		"ETH":  decimal.NewFromInt(10),
		"BNB":  decimal.NewFromInt(20),
	}
}

// Fill is one FILLED execution outcome joined with its parent order's
// symbol and side.
type Fill struct {
	Symbol   string
	Side     core.Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// SplitSymbol decomposes a trading pair into base and quote by suffix match
// against the known quote assets. Unknown suffixes fall back to USDT.
func SplitSymbol(symbol string) (base, quote string) {
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q
		}
	}
	return symbol, "USDT"
}

// ReduceBalances replays fills over the seed table. A BUY adds quantity to
// the base asset and subtracts quantity*price from the quote asset; a SELL
// is the inverse. Summation is commutative, so fill order does not matter.
func ReduceBalances(seed map[string]decimal.Decimal, fills []Fill) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(seed))
	for asset, amount := range seed {
		balances[asset] = amount
	}

	for _, f := range fills {
		base, quote := SplitSymbol(f.Symbol)
		cost := f.Quantity.Mul(f.Price)

		if f.Side == core.SideBuy {
			balances[base] = balances[base].Add(f.Quantity)
			balances[quote] = balances[quote].Sub(cost)
		} else {
			balances[base] = balances[base].Sub(f.Quantity)
			balances[quote] = balances[quote].Add(cost)
		}
	}
	return balances
}

// ReducePositions sums filled quantities per symbol, signed by side.
func ReducePositions(fills []Fill) map[string]decimal.Decimal {
	positions := make(map[string]decimal.Decimal)
	for _, f := range fills {
		if f.Side == core.SideBuy {
			positions[f.Symbol] = positions[f.Symbol].Add(f.Quantity)
		} else {
			positions[f.Symbol] = positions[f.Symbol].Sub(f.Quantity)
		}
	}
	return positions
}
