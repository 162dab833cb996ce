package tasks

import "fmt"

// GridKind selects how a task fans out into parameter combinations.
type GridKind int

const (
	// GridNone runs a single combination with no grid-derived parameters.
	GridNone GridKind = iota
	// GridExchangeFuturesPair expands exchanges x futures pairs.
	GridExchangeFuturesPair
	// GridExchangeSpotPair expands exchanges x spot pairs.
	GridExchangeSpotPair
	// GridCoin expands the coin list.
	GridCoin
	// GridExchangeListCoin expands exchange-list groups x coins.
	GridExchangeListCoin
	// GridExchangeCoin expands exchanges x coins.
	GridExchangeCoin
)

// Grids holds the configured parameter lists shared by all tasks.
type Grids struct {
	Exchanges     []string
	Coins         []string
	FuturesPairs  []string
	SpotPairs     []string
	ExchangeLists []string
}

// Combo is one expanded grid point: the request parameters it contributes and
// the natural-key columns it pins for every row of the walk.
type Combo struct {
	Label      string
	Params     map[string]string
	KeyColumns []string
	KeyValues  []any
}

// Expand produces the ordered combination list for this grid kind.
func (k GridKind) Expand(g Grids) []Combo {
	switch k {
	case GridExchangeFuturesPair:
		return exchangeSymbolCombos(g.Exchanges, g.FuturesPairs)
	case GridExchangeSpotPair:
		return exchangeSymbolCombos(g.Exchanges, g.SpotPairs)
	case GridCoin:
		out := make([]Combo, 0, len(g.Coins))
		for _, coin := range g.Coins {
			out = append(out, Combo{
				Label:      coin,
				Params:     map[string]string{"symbol": coin},
				KeyColumns: []string{"symbol"},
				KeyValues:  []any{coin},
			})
		}
		return out
	case GridExchangeListCoin:
		out := make([]Combo, 0, len(g.ExchangeLists)*len(g.Coins))
		for _, list := range g.ExchangeLists {
			for _, coin := range g.Coins {
				out = append(out, Combo{
					Label:      fmt.Sprintf("%s|%s", list, coin),
					Params:     map[string]string{"exchange_list": list, "symbol": coin},
					KeyColumns: []string{"exchange_list", "symbol"},
					KeyValues:  []any{list, coin},
				})
			}
		}
		return out
	case GridExchangeCoin:
		return exchangeSymbolCombos(g.Exchanges, g.Coins)
	default:
		return []Combo{{Label: "-", Params: map[string]string{}}}
	}
}

func exchangeSymbolCombos(exchanges, symbols []string) []Combo {
	out := make([]Combo, 0, len(exchanges)*len(symbols))
	for _, ex := range exchanges {
		for _, sym := range symbols {
			out = append(out, Combo{
				Label:      fmt.Sprintf("%s|%s", ex, sym),
				Params:     map[string]string{"exchange": ex, "symbol": sym},
				KeyColumns: []string{"exchange", "symbol"},
				KeyValues:  []any{ex, sym},
			})
		}
	}
	return out
}
