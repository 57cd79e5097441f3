// Package detector derives anomaly indicators for stored whale alerts.
package detector

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/polyinsider/wwatcher/internal/config"
	"github.com/polyinsider/wwatcher/internal/store"
)

// Indicator names an anomaly found on an alert.
type Indicator string

const (
	IndicatorHeavyActor        Indicator = "HEAVY_ACTOR"
	IndicatorRepeatActor       Indicator = "REPEAT_ACTOR"
	IndicatorCoordinated       Indicator = "COORDINATED"
	IndicatorExtremeConfidence Indicator = "EXTREME_CONFIDENCE"
	IndicatorContrarian        Indicator = "CONTRARIAN"
	IndicatorLargePosition     Indicator = "LARGE_POSITION"
	IndicatorMajorCapital      Indicator = "MAJOR_CAPITAL"
	IndicatorHighConviction    Indicator = "HIGH_CONVICTION"
	IndicatorUnlikelyBet       Indicator = "UNLIKELY_BET"
	IndicatorWalletBurst       Indicator = "WALLET_BURST"
)

// Fixed rule bounds. Prices are 0-1.
const (
	extremePrice     = 0.95
	contrarianPrice  = 0.05
	convictionPrice  = 0.90
	convictionSize   = 50000
	unlikelyPrice    = 0.20
	unlikelyBetValue = 50000
)

// Finding is one indicator with a human readable detail.
type Finding struct {
	Indicator Indicator `json:"indicator"`
	Detail    string    `json:"detail"`
}

// Thresholds are the configurable rule bounds.
type Thresholds struct {
	WhaleValueUSD     float64
	LargeSize         float64
	HeavyHourValueUSD float64
	BurstCount        int
	BurstWindow       time.Duration
}

// ThresholdsFromConfig copies the anomaly settings out of cfg.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		WhaleValueUSD:     cfg.WhaleValueUSD,
		LargeSize:         cfg.LargeSize,
		HeavyHourValueUSD: cfg.HeavyHourValueUSD,
		BurstCount:        cfg.BurstCount,
		BurstWindow:       cfg.BurstWindow,
	}
}

// WalletActivity is the wallet context the watcher attaches to an alert.
type WalletActivity struct {
	TransactionsLastHour int     `json:"transactions_last_hour"`
	TransactionsLastDay  int     `json:"transactions_last_day"`
	TotalValueHour       float64 `json:"total_value_hour"`
	TotalValueDay        float64 `json:"total_value_day"`
	IsRepeatActor        bool    `json:"is_repeat_actor"`
	IsHeavyActor         bool    `json:"is_heavy_actor"`
}

// DecodeWalletActivity decodes raw leniently; ok is false when raw is empty
// or not a wallet activity object.
func DecodeWalletActivity(raw json.RawMessage) (WalletActivity, bool) {
	var wa WalletActivity
	if len(raw) == 0 {
		return wa, false
	}
	if err := json.Unmarshal(raw, &wa); err != nil {
		return WalletActivity{}, false
	}
	return wa, true
}

// Detector applies rules to flag unusual whale alerts.
type Detector struct {
	th     Thresholds
	bursts *BurstTracker
}

// NewDetector creates a new Detector. history, when non-nil, enables the
// wallet burst rule.
func NewDetector(th Thresholds, history []store.Alert) *Detector {
	d := &Detector{th: th}
	if history != nil && th.BurstCount > 1 && th.BurstWindow > 0 {
		d.bursts = NewBurstTracker(history, th.BurstWindow)
	}
	return d
}

// Detect analyzes an alert and returns any indicators found, in rule order.
func (d *Detector) Detect(a store.Alert) []Finding {
	findings := []Finding{}
	add := func(ind Indicator, format string, args ...any) {
		findings = append(findings, Finding{Indicator: ind, Detail: fmt.Sprintf(format, args...)})
	}

	// Check 1: Wallet context
	if wa, ok := DecodeWalletActivity(a.WalletActivity); ok {
		if wa.IsHeavyActor {
			add(IndicatorHeavyActor, "%d transactions worth $%.2f in last 24h", wa.TransactionsLastDay, wa.TotalValueDay)
		} else if wa.IsRepeatActor {
			add(IndicatorRepeatActor, "%d transactions in last hour", wa.TransactionsLastHour)
		}
		if wa.TotalValueHour > d.th.HeavyHourValueUSD {
			add(IndicatorCoordinated, "$%.0f volume in past hour", wa.TotalValueHour)
		}
	}

	// Check 2: Price extremes
	price, hasPrice := alertPrice(a)
	if hasPrice {
		if price > extremePrice {
			add(IndicatorExtremeConfidence, "%.1f%% probability", price*100)
		} else if price < contrarianPrice {
			add(IndicatorContrarian, "%.1f%% probability", price*100)
		}
	}

	// Check 3: Size and capital
	size := 0.0
	if a.Size != nil {
		size = *a.Size
	}
	if size > d.th.LargeSize {
		add(IndicatorLargePosition, "position size %.0f", size)
	}
	if a.Value > d.th.WhaleValueUSD {
		add(IndicatorMajorCapital, "$%.0f deployed", a.Value)
	}

	// Check 4: Conviction against price
	if hasPrice && price > convictionPrice && size > convictionSize {
		add(IndicatorHighConviction, "size %.0f at %.1f%%", size, price*100)
	}
	if hasPrice && price < unlikelyPrice && a.Value > unlikelyBetValue {
		add(IndicatorUnlikelyBet, "$%.0f at %.1f%%, possible hedge or information asymmetry", a.Value, price*100)
	}

	// Check 5: Wallet burst across the log
	if d.bursts != nil && a.WalletID != "" {
		if ts, err := parseTimestamp(a.Timestamp); err == nil {
			if n := d.bursts.Count(a.WalletID, ts); n >= d.th.BurstCount {
				add(IndicatorWalletBurst, "%d alerts from this wallet within %s", n, d.th.BurstWindow)
			}
		}
	}

	return findings
}

// alertPrice returns the 0-1 price of a, preferring the raw price field.
func alertPrice(a store.Alert) (float64, bool) {
	if a.Price != nil {
		return *a.Price, true
	}
	if a.PricePercent != 0 {
		return a.PricePercent / 100, true
	}
	return 0, false
}
