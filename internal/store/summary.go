package store

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTopMarkets is the number of markets Summarize ranks when topN is not positive.
const DefaultTopMarkets = 10

// Summarize computes aggregate statistics over the whole store in a single
// pass. Top markets are ranked by volume, ties broken by market title.
func (s *Store) Summarize(topN int) Summary {
	s.mustBeLoaded()

	if topN <= 0 {
		topN = DefaultTopMarkets
	}

	sum := Summary{
		TotalAlerts:      len(s.entries),
		TotalVolume:      decimal.Zero,
		VolumeByPlatform: make(map[string]decimal.Decimal),
		AlertsByPlatform: make(map[string]int),
		AlertsByType:     make(map[string]int),
		TopMarkets:       []MarketVolume{},
	}

	wallets := make(map[string]struct{})
	markets := make(map[string]*MarketVolume)
	var earliest, latest, largest *entry

	for i := range s.entries {
		e := &s.entries[i]
		a := e.alert
		value := decimal.NewFromFloat(a.Value)

		sum.TotalVolume = sum.TotalVolume.Add(value)
		sum.VolumeByPlatform[a.Platform] = sum.VolumeByPlatform[a.Platform].Add(value)
		sum.AlertsByPlatform[a.Platform]++
		sum.AlertsByType[a.AlertType]++

		switch a.AlertType {
		case AlertWhaleEntry:
			sum.WhaleEntries++
		case AlertWhaleExit:
			sum.WhaleExits++
		}

		if a.WalletID != "" {
			wallets[a.WalletID] = struct{}{}
		}

		mv, ok := markets[a.MarketTitle]
		if !ok {
			mv = &MarketVolume{MarketTitle: a.MarketTitle, Volume: decimal.Zero}
			markets[a.MarketTitle] = mv
		}
		mv.Volume = mv.Volume.Add(value)
		mv.AlertCount++

		if earliest == nil || e.ts.compare(earliest.ts) < 0 {
			earliest = e
		}
		if latest == nil || e.ts.compare(latest.ts) >= 0 {
			latest = e
		}
		if largest == nil || a.Value > largest.alert.Value {
			largest = e
		}
	}

	sum.UniqueWallets = len(wallets)

	ranked := make([]MarketVolume, 0, len(markets))
	for _, mv := range markets {
		ranked = append(ranked, *mv)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Volume.Cmp(ranked[j].Volume); c != 0 {
			return c > 0
		}
		return ranked[i].MarketTitle < ranked[j].MarketTitle
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	sum.TopMarkets = ranked

	if earliest != nil {
		ts := earliest.alert.Timestamp
		sum.EarliestAlertTime = &ts
	}
	if latest != nil {
		ts := latest.alert.Timestamp
		sum.LatestAlertTime = &ts
	}
	if largest != nil {
		a := largest.alert
		sum.LargestAlert = &a
	}

	return sum
}
