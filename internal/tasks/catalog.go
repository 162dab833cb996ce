package tasks

import (
	"cgsync/pkg/ingest"
)

// Dataset binds one provider endpoint to one destination table.
type Dataset struct {
	Table string
	Path  string
	// Paged datasets walk backward through history; the rest are fetched in
	// one unpaginated call.
	Paged bool
	// TimeKey is the preferred timestamp field name in raw records.
	TimeKey string
	// TimeColumn is the destination timestamp column; TimeAsDate stores the
	// UTC calendar date instead of the instant.
	TimeColumn string
	TimeAsDate bool
	// Params are static request parameters beyond the grid's contribution.
	Params map[string]string
	// Columns map raw fields to the destination value columns.
	Columns []ingest.ColumnSpec
	// ConflictKeys form the table's natural key.
	ConflictKeys []string
	// Explode flattens one raw record into several (per-day ticker lists),
	// carrying the outer record's instant under the resolved time key.
	Explode func(rec ingest.Record, timeKey string) []ingest.Record
	// PageLimitFor overrides the configured page size for specific combos.
	PageLimitFor func(combo Combo, configured int) int
}

// Task is one named pipeline entry; several datasets may share a grid.
type Task struct {
	Name     string
	Grid     GridKind
	Datasets []Dataset
}

func fcol(name string, keys ...string) ingest.ColumnSpec {
	if len(keys) == 0 {
		keys = []string{name}
	}
	return ingest.ColumnSpec{Name: name, Keys: keys, Kind: ingest.ColumnFloat}
}

func ohlcColumns() []ingest.ColumnSpec {
	return []ingest.ColumnSpec{fcol("open"), fcol("high"), fcol("low"), fcol("close")}
}

func candleColumns() []ingest.ColumnSpec {
	return append(ohlcColumns(), fcol("volume_usd", "volume_usd", "volume"))
}

func interval1d() map[string]string {
	return map[string]string{"interval": "1d"}
}

// explodeDailyList flattens a per-day record carrying an inner item list,
// stamping each inner item with the outer day's instant under the resolved
// time key so the downstream parse reads the same field it resolved.
func explodeDailyList(rec ingest.Record, timeKey string) []ingest.Record {
	ts, ok := rec[timeKey]
	if !ok || ts == nil {
		return nil
	}
	inner, ok := rec["list"].([]any)
	if !ok {
		return nil
	}
	out := make([]ingest.Record, 0, len(inner))
	for _, item := range inner {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		flat := make(ingest.Record, len(m)+1)
		for k, v := range m {
			flat[k] = v
		}
		flat[timeKey] = ts
		out = append(out, flat)
	}
	return out
}

// stablecoinPageLimit lowers the per-request ceiling for the deepest history
// (BTC) to reduce timeout risk on the slowest endpoint.
func stablecoinPageLimit(combo Combo, configured int) int {
	if combo.Params["symbol"] == "BTC" && configured > 3000 {
		return 3000
	}
	return configured
}

// Catalog returns the ordered ingestion pipeline. Order matters only for log
// readability and deterministic rate-budget attribution; every task owns a
// disjoint set of destination rows.
func Catalog() []Task {
	return []Task{
		{
			Name: "futures_candles_1d",
			Grid: GridExchangeFuturesPair,
			Datasets: []Dataset{{
				Table:        "futures_candles_1d",
				Path:         "/api/futures/price/history",
				Paged:        true,
				TimeKey:      "time",
				TimeColumn:   "ts_utc",
				Params:       interval1d(),
				Columns:      candleColumns(),
				ConflictKeys: []string{"exchange", "symbol", "ts_utc"},
			}},
		},
		{
			Name: "spot_candles_1d",
			Grid: GridExchangeSpotPair,
			Datasets: []Dataset{{
				Table:        "spot_candles_1d",
				Path:         "/api/spot/price/history",
				Paged:        true,
				TimeKey:      "time",
				TimeColumn:   "ts_utc",
				Params:       interval1d(),
				Columns:      candleColumns(),
				ConflictKeys: []string{"exchange", "symbol", "ts_utc"},
			}},
		},
		{
			Name: "oi_agg_1d",
			Grid: GridCoin,
			Datasets: []Dataset{{
				Table:      "futures_oi_agg_1d",
				Path:       "/api/futures/open-interest/aggregated-history",
				Paged:      true,
				TimeKey:    "time",
				TimeColumn: "ts_utc",
				Params:     map[string]string{"interval": "1d", "unit": "usd"},
				Columns: append(ohlcColumns(),
					ingest.ColumnSpec{Name: "unit", Kind: ingest.ColumnString, Const: "usd"}),
				ConflictKeys: []string{"symbol", "ts_utc", "unit"},
			}},
		},
		{
			Name: "oi_stable_1d",
			Grid: GridExchangeListCoin,
			Datasets: []Dataset{{
				Table:        "futures_oi_stablecoin_1d",
				Path:         "/api/futures/open-interest/aggregated-stablecoin-history",
				Paged:        true,
				TimeKey:      "time",
				TimeColumn:   "ts_utc",
				Params:       interval1d(),
				Columns:      ohlcColumns(),
				ConflictKeys: []string{"exchange_list", "symbol", "ts_utc"},
				PageLimitFor: stablecoinPageLimit,
			}},
		},
		{
			Name: "oi_coinm_1d",
			Grid: GridExchangeListCoin,
			Datasets: []Dataset{{
				Table:        "futures_oi_coin_margin_1d",
				Path:         "/api/futures/open-interest/aggregated-coin-margin-history",
				Paged:        true,
				TimeKey:      "time",
				TimeColumn:   "ts_utc",
				Params:       interval1d(),
				Columns:      ohlcColumns(),
				ConflictKeys: []string{"exchange_list", "symbol", "ts_utc"},
			}},
		},
		{
			Name: "funding_1d",
			Grid: GridCoin,
			Datasets: []Dataset{
				{
					Table:        "funding_oi_weight_1d",
					Path:         "/api/futures/funding-rate/oi-weight-history",
					Paged:        true,
					TimeKey:      "time",
					TimeColumn:   "ts_utc",
					Params:       interval1d(),
					Columns:      ohlcColumns(),
					ConflictKeys: []string{"symbol", "ts_utc"},
				},
				{
					Table:        "funding_vol_weight_1d",
					Path:         "/api/futures/funding-rate/vol-weight-history",
					Paged:        true,
					TimeKey:      "time",
					TimeColumn:   "ts_utc",
					Params:       interval1d(),
					Columns:      ohlcColumns(),
					ConflictKeys: []string{"symbol", "ts_utc"},
				},
			},
		},
		{
			Name: "long_short_1d",
			Grid: GridExchangeFuturesPair,
			Datasets: []Dataset{
				{
					Table:      "long_short_global_1d",
					Path:       "/api/futures/global-long-short-account-ratio/history",
					Paged:      true,
					TimeKey:    "time",
					TimeColumn: "ts_utc",
					Params:     interval1d(),
					Columns: []ingest.ColumnSpec{
						fcol("long_percent", "global_account_long_percent"),
						fcol("short_percent", "global_account_short_percent"),
						fcol("long_short_ratio", "global_account_long_short_ratio"),
					},
					ConflictKeys: []string{"exchange", "symbol", "ts_utc"},
				},
				{
					Table:      "long_short_top_accounts_1d",
					Path:       "/api/futures/top-long-short-account-ratio/history",
					Paged:      true,
					TimeKey:    "time",
					TimeColumn: "ts_utc",
					Params:     interval1d(),
					Columns: []ingest.ColumnSpec{
						fcol("long_percent", "top_account_long_percent"),
						fcol("short_percent", "top_account_short_percent"),
						fcol("long_short_ratio", "top_account_long_short_ratio"),
					},
					ConflictKeys: []string{"exchange", "symbol", "ts_utc"},
				},
				{
					Table:      "long_short_top_positions_1d",
					Path:       "/api/futures/top-long-short-position-ratio/history",
					Paged:      true,
					TimeKey:    "time",
					TimeColumn: "ts_utc",
					Params:     interval1d(),
					Columns: []ingest.ColumnSpec{
						fcol("long_percent", "top_position_long_percent"),
						fcol("short_percent", "top_position_short_percent"),
						fcol("long_short_ratio", "top_position_long_short_ratio"),
					},
					ConflictKeys: []string{"exchange", "symbol", "ts_utc"},
				},
			},
		},
		{
			Name: "liquidation_1d",
			Grid: GridExchangeListCoin,
			Datasets: []Dataset{{
				Table:      "liquidation_agg_1d",
				Path:       "/api/futures/liquidation/aggregated-history",
				Paged:      true,
				TimeKey:    "time",
				TimeColumn: "ts_utc",
				Params:     interval1d(),
				Columns: []ingest.ColumnSpec{
					fcol("long_liq_usd", "aggregated_long_liquidation_usd", "long_liq_usd", "long_liquidation_usd"),
					fcol("short_liq_usd", "aggregated_short_liquidation_usd", "short_liq_usd", "short_liquidation_usd"),
				},
				ConflictKeys: []string{"exchange_list", "symbol", "ts_utc"},
			}},
		},
		{
			Name: "orderbook_agg_futures_1d",
			Grid: GridExchangeListCoin,
			Datasets: []Dataset{{
				Table:      "orderbook_agg_futures_1d",
				Path:       "/api/futures/orderbook/aggregated-ask-bids-history",
				Paged:      true,
				TimeKey:    "time",
				TimeColumn: "ts_utc",
				Params:     map[string]string{"interval": "1d", "range": "1"},
				Columns: []ingest.ColumnSpec{
					fcol("bids_usd", "aggregated_bids_usd", "bids_usd"),
					fcol("bids_qty", "aggregated_bids_quantity", "bids_qty"),
					fcol("asks_usd", "aggregated_asks_usd", "asks_usd"),
					fcol("asks_qty", "aggregated_asks_quantity", "asks_qty"),
					{Name: "range_pct", Kind: ingest.ColumnFloat, Const: 1.0},
				},
				ConflictKeys: []string{"exchange_list", "symbol", "ts_utc", "range_pct"},
			}},
		},
		{
			Name: "taker_vol_agg_futures_1d",
			Grid: GridExchangeListCoin,
			Datasets: []Dataset{{
				Table:      "taker_vol_agg_futures_1d",
				Path:       "/api/futures/aggregated-taker-buy-sell-volume/history",
				Paged:      true,
				TimeKey:    "time",
				TimeColumn: "ts_utc",
				Params:     map[string]string{"interval": "1d", "unit": "usd"},
				Columns: []ingest.ColumnSpec{
					fcol("buy_vol_usd", "aggregated_buy_volume_usd", "buy_vol_usd", "buy_volume_usd"),
					fcol("sell_vol_usd", "aggregated_sell_volume_usd", "sell_vol_usd", "sell_volume_usd"),
				},
				ConflictKeys: []string{"exchange_list", "symbol", "ts_utc"},
			}},
		},
		{
			Name: "etf_bitcoin_flow_aum",
			Grid: GridNone,
			Datasets: []Dataset{
				{
					Table:      "etf_bitcoin_flow_1d",
					Path:       "/api/etf/bitcoin/flow-history",
					TimeKey:    "timestamp",
					TimeColumn: "date_utc",
					TimeAsDate: true,
					Columns: []ingest.ColumnSpec{
						fcol("total_flow_usd", "flow_usd", "total_flow_usd", "net_flow_usd", "flow"),
						fcol("price_usd", "price_usd", "price", "btc_price_usd", "btc_price"),
						{Name: "details", Keys: []string{"etf_flows", "details", "list"}, Kind: ingest.ColumnJSON},
					},
					ConflictKeys: []string{"date_utc"},
				},
				{
					Table:      "etf_bitcoin_net_assets_1d",
					Path:       "/api/etf/bitcoin/net-assets/history",
					TimeKey:    "timestamp",
					TimeColumn: "date_utc",
					TimeAsDate: true,
					Columns: []ingest.ColumnSpec{
						fcol("net_assets_usd", "net_assets_usd", "aum_usd"),
						fcol("change_usd", "change_usd", "delta_usd", "net_change_usd"),
						fcol("price_usd", "price_usd", "price", "btc_price_usd", "btc_price"),
					},
					ConflictKeys: []string{"date_utc"},
				},
			},
		},
		{
			Name: "etf_premium_discount_1d",
			Grid: GridNone,
			Datasets: []Dataset{{
				Table:      "etf_premium_discount_1d",
				Path:       "/api/etf/bitcoin/premium-discount/history",
				TimeKey:    "timestamp",
				TimeColumn: "date_utc",
				TimeAsDate: true,
				Explode:    explodeDailyList,
				Columns: []ingest.ColumnSpec{
					{Name: "ticker", Keys: []string{"ticker"}, Kind: ingest.ColumnString},
					fcol("nav_usd", "nav_usd", "nav"),
					fcol("market_price_usd", "market_price_usd", "price_usd", "price"),
					fcol("premium_discount", "premium_discount", "premium_discount_rate", "discount_rate"),
				},
				ConflictKeys: []string{"date_utc", "ticker"},
			}},
		},
		{
			Name: "hk_etf_flow_1d",
			Grid: GridNone,
			Datasets: []Dataset{{
				Table:      "hk_etf_flow_1d",
				Path:       "/api/hk-etf/bitcoin/flow-history",
				TimeKey:    "timestamp",
				TimeColumn: "date_utc",
				TimeAsDate: true,
				Columns: []ingest.ColumnSpec{
					fcol("total_flow_usd", "flow_usd", "total_flow_usd", "net_flow_usd", "flow"),
					fcol("price_usd", "price_usd", "price", "btc_price_usd", "btc_price"),
					{Name: "details", Keys: []string{"etf_flows", "details", "list"}, Kind: ingest.ColumnJSON},
				},
				ConflictKeys: []string{"date_utc"},
			}},
		},
		{
			Name: "coinbase_premium_index_1d",
			Grid: GridNone,
			Datasets: []Dataset{{
				Table:      "coinbase_premium_index_1d",
				Path:       "/api/coinbase-premium-index",
				Paged:      true,
				TimeKey:    "time",
				TimeColumn: "ts_utc",
				Params:     interval1d(),
				Columns: []ingest.ColumnSpec{
					fcol("premium_usd", "premium", "premium_usd"),
					fcol("premium_rate", "premium_rate", "rate"),
				},
				ConflictKeys: []string{"ts_utc"},
			}},
		},
		{
			Name: "bitfinex_margin_long_short_1d",
			Grid: GridCoin,
			Datasets: []Dataset{{
				Table:      "bitfinex_margin_long_short_1d",
				Path:       "/api/bitfinex-margin-long-short",
				Paged:      true,
				TimeKey:    "time",
				TimeColumn: "ts_utc",
				Params:     interval1d(),
				Columns: []ingest.ColumnSpec{
					fcol("long_qty", "long_quantity", "long_qty"),
					fcol("short_qty", "short_quantity", "short_qty"),
				},
				ConflictKeys: []string{"symbol", "ts_utc"},
			}},
		},
		{
			Name: "borrow_interest_rate_1d",
			Grid: GridExchangeCoin,
			Datasets: []Dataset{{
				Table:        "borrow_interest_rate_1d",
				Path:         "/api/borrow-interest-rate/history",
				Paged:        true,
				TimeKey:      "time",
				TimeColumn:   "ts_utc",
				Params:       interval1d(),
				Columns:      []ingest.ColumnSpec{fcol("interest_rate", "interest_rate", "rate")},
				ConflictKeys: []string{"exchange", "symbol", "ts_utc"},
			}},
		},
		{
			Name: "indices_daily",
			Grid: GridNone,
			Datasets: []Dataset{
				{
					Table:      "idx_puell_multiple_daily",
					Path:       "/api/index/puell-multiple",
					TimeKey:    "timestamp",
					TimeColumn: "date_utc",
					TimeAsDate: true,
					Columns: []ingest.ColumnSpec{
						fcol("price", "price", "price_usd"),
						fcol("puell_multiple", "puell_multiple", "puell"),
					},
					ConflictKeys: []string{"date_utc"},
				},
				{
					Table:      "idx_stock_to_flow_daily",
					Path:       "/api/index/stock-flow",
					TimeKey:    "timestamp",
					TimeColumn: "date_utc",
					TimeAsDate: true,
					Columns: []ingest.ColumnSpec{
						fcol("price", "price", "price_usd"),
						{Name: "next_halving", Keys: []string{"next_halving", "next_halving_epoch"}, Kind: ingest.ColumnInt},
					},
					ConflictKeys: []string{"date_utc"},
				},
				{
					Table:      "idx_pi_cycle_daily",
					Path:       "/api/index/pi-cycle-indicator",
					TimeKey:    "timestamp",
					TimeColumn: "date_utc",
					TimeAsDate: true,
					Columns: []ingest.ColumnSpec{
						fcol("price", "price", "price_usd"),
						fcol("ma_110"),
						fcol("ma_350_x2", "ma_350_mu_2", "ma_350_x2"),
					},
					ConflictKeys: []string{"date_utc"},
				},
			},
		},
	}
}
