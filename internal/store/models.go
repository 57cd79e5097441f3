// Package store loads the alert history log and answers read queries over it.
package store

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Alert types written by the watcher. The set is open; other values are kept as-is.
const (
	AlertWhaleEntry = "WHALE_ENTRY"
	AlertWhaleExit  = "WHALE_EXIT"
)

// Alert represents a single whale alert recorded in the history log.
type Alert struct {
	// Platform is the market platform identifier (polymarket, kalshi)
	Platform string `json:"platform"`

	// AlertType is WHALE_ENTRY, WHALE_EXIT or any newer type
	AlertType string `json:"alert_type"`

	// Action is the trade action as written by the watcher (BUY, SELL)
	Action string `json:"action"`

	// Value is the USD notional of the trade
	Value float64 `json:"value"`

	// PricePercent is the implied probability at trade time (0-100)
	PricePercent float64 `json:"price_percent"`

	// Price is the raw 0-1 execution price, when the log carries it
	Price *float64 `json:"price,omitempty"`

	// Size is the raw contract size, when the log carries it
	Size *float64 `json:"size,omitempty"`

	MarketTitle string `json:"market_title"`
	Outcome     string `json:"outcome"`

	// Timestamp is the ISO-8601 time of the trade
	Timestamp string `json:"timestamp"`

	WalletID string `json:"wallet_id,omitempty"`

	// WalletActivity is passed through untouched
	WalletActivity json.RawMessage `json:"wallet_activity,omitempty"`
}

// Filter selects alerts in Query. Zero-valued fields impose no constraint.
type Filter struct {
	Limit     int      `json:"limit"`
	Platform  string   `json:"platform,omitempty"`
	AlertType string   `json:"alert_type,omitempty"`
	MinValue  *float64 `json:"min_value,omitempty"`
	Since     string   `json:"since,omitempty"`
}

// MarketVolume is the aggregate traded volume of one market title.
type MarketVolume struct {
	MarketTitle string          `json:"market_title"`
	Volume      decimal.Decimal `json:"volume"`
	AlertCount  int             `json:"alert_count"`
}

// Summary holds aggregate statistics over the whole store.
type Summary struct {
	TotalAlerts       int                        `json:"total_alerts"`
	TotalVolume       decimal.Decimal            `json:"total_volume"`
	VolumeByPlatform  map[string]decimal.Decimal `json:"volume_by_platform"`
	AlertsByPlatform  map[string]int             `json:"alerts_by_platform"`
	AlertsByType      map[string]int             `json:"alerts_by_type"`
	WhaleEntries      int                        `json:"whale_entries"`
	WhaleExits        int                        `json:"whale_exits"`
	UniqueWallets     int                        `json:"unique_wallets"`
	TopMarkets        []MarketVolume             `json:"top_markets"`
	EarliestAlertTime *string                    `json:"earliest_alert_time"`
	LatestAlertTime   *string                    `json:"latest_alert_time"`
	LargestAlert      *Alert                     `json:"largest_alert,omitempty"`
}
