package detector

import (
	"sort"
	"time"

	"github.com/polyinsider/wwatcher/internal/store"
)

// BurstTracker indexes alert times per wallet so that bursts of alerts from
// one wallet can be counted at any point of the history.
type BurstTracker struct {
	trades map[string][]time.Time
	window time.Duration
}

// NewBurstTracker creates a BurstTracker over alerts with the specified
// window. Alerts without a wallet or a parseable timestamp are ignored.
func NewBurstTracker(alerts []store.Alert, window time.Duration) *BurstTracker {
	b := &BurstTracker{
		trades: make(map[string][]time.Time),
		window: window,
	}

	for _, a := range alerts {
		if a.WalletID == "" {
			continue
		}
		ts, err := parseTimestamp(a.Timestamp)
		if err != nil {
			continue
		}
		b.trades[a.WalletID] = append(b.trades[a.WalletID], ts)
	}

	for _, timestamps := range b.trades {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
	}

	return b
}

// Count returns the number of alerts from wallet within the window ending
// at at, including one exactly at at.
func (b *BurstTracker) Count(wallet string, at time.Time) int {
	if b == nil {
		return 0
	}
	timestamps := b.trades[wallet]
	if len(timestamps) == 0 {
		return 0
	}

	cutoff := at.Add(-b.window)

	// First alert after the cutoff and first alert after at.
	lo := sort.Search(len(timestamps), func(i int) bool { return timestamps[i].After(cutoff) })
	hi := sort.Search(len(timestamps), func(i int) bool { return timestamps[i].After(at) })

	return hi - lo
}

// Wallets returns how many distinct wallets are indexed.
func (b *BurstTracker) Wallets() int {
	if b == nil {
		return 0
	}
	return len(b.trades)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
