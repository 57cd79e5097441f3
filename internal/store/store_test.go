package store

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alert_history.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func alertLine(platform, alertType string, value float64, title, outcome, ts, wallet string) string {
	return fmt.Sprintf(`{"platform":%q,"alert_type":%q,"action":"BUY","value":%v,"price_percent":50,`+
		`"market_title":%q,"outcome":%q,"timestamp":%q,"wallet_id":%q}`,
		platform, alertType, value, title, outcome, ts, wallet)
}

func loadStore(t *testing.T, lines ...string) *Store {
	t.Helper()
	s := New(nil)
	if err := s.Load(writeLog(t, lines...)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s
}

func fixture() []string {
	return []string{
		alertLine("polymarket", "WHALE_ENTRY", 75000, "Bitcoin above 100k", "Yes", "2024-01-01T00:00:00Z", "0xa"),
		"this is not json",
		alertLine("kalshi", "WHALE_EXIT", 30000, "Fed cuts rates in March", "No", "2024-01-03T00:00:00Z", "0xb"),
		"",
		alertLine("polymarket", "WHALE_EXIT", 120000, "Bitcoin above 100k", "No", "2024-01-02T00:00:00Z", "0xa"),
		`{"platform":"polymarket","value":1}`,
		alertLine("kalshi", "WHALE_ENTRY", 50000, "Lakers win title", "Lakers", "2024-01-04T00:00:00Z", "0xc"),
	}
}

func TestLoadCountsOnlyParsedLines(t *testing.T) {
	s := loadStore(t, fixture()...)

	if s.Count() != 4 {
		t.Errorf("Count() = %d, want 4", s.Count())
	}
	if s.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", s.Skipped())
	}
	if !s.Exists() {
		t.Error("Exists() = false, want true")
	}
	if s.SizeBytes() == 0 {
		t.Error("SizeBytes() = 0")
	}

	for _, a := range s.Query(Filter{Limit: 100}) {
		if a.Platform == "" || a.AlertType == "" {
			t.Errorf("malformed alert leaked into results: %+v", a)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(nil)
	if err := s.Load(filepath.Join(t.TempDir(), "absent.jsonl")); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
	if s.Exists() {
		t.Error("Exists() = true, want false")
	}
	if _, ok := s.LatestAlertTime(); ok {
		t.Error("LatestAlertTime() should report empty store")
	}
	if got := s.Query(Filter{}); len(got) != 0 {
		t.Errorf("Query on empty store = %v", got)
	}
}

func TestLoadDirectoryIsError(t *testing.T) {
	s := New(nil)
	if err := s.Load(t.TempDir()); err == nil {
		t.Fatal("expected error loading a directory")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after failed load", s.Count())
	}
}

func TestLoadLongLine(t *testing.T) {
	title := strings.Repeat("x", 200_000)
	s := loadStore(t, alertLine("polymarket", "WHALE_ENTRY", 1, title, "Yes", "2024-01-01T00:00:00Z", ""))
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
}

func TestLoadWithoutTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	data := alertLine("polymarket", "WHALE_ENTRY", 1, "A", "Yes", "2024-01-01T00:00:00Z", "")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(nil)
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestQueryOnUnloadedStorePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for query before Load")
		}
	}()
	New(nil).Count()
}

func TestLatestAlertTime(t *testing.T) {
	s := loadStore(t, fixture()...)
	latest, ok := s.LatestAlertTime()
	if !ok || latest != "2024-01-04T00:00:00Z" {
		t.Errorf("LatestAlertTime() = %q, %v", latest, ok)
	}
}

func TestQueryDefaultsAndOrder(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, alertLine("polymarket", "WHALE_ENTRY", float64(i), "M", "Yes",
			fmt.Sprintf("2024-01-01T00:%02d:00Z", i), ""))
	}
	s := loadStore(t, lines...)

	got := s.Query(Filter{})
	if len(got) != DefaultLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultLimit)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp < got[i].Timestamp {
			t.Fatalf("not most-recent-first at %d: %s < %s", i, got[i-1].Timestamp, got[i].Timestamp)
		}
	}
	if got[0].Value != 29 {
		t.Errorf("first alert value = %v, want 29", got[0].Value)
	}
}

func TestQueryOrdersByTimestampNotFileOrder(t *testing.T) {
	s := loadStore(t, fixture()...)
	got := s.Query(Filter{})

	want := []string{
		"2024-01-04T00:00:00Z",
		"2024-01-03T00:00:00Z",
		"2024-01-02T00:00:00Z",
		"2024-01-01T00:00:00Z",
	}
	var ts []string
	for _, a := range got {
		ts = append(ts, a.Timestamp)
	}
	if !reflect.DeepEqual(ts, want) {
		t.Errorf("order = %v, want %v", ts, want)
	}
}

func TestQueryEqualTimestampsLaterLineFirst(t *testing.T) {
	s := loadStore(t,
		alertLine("polymarket", "WHALE_ENTRY", 1, "first", "", "2024-01-01T00:00:00Z", ""),
		alertLine("polymarket", "WHALE_ENTRY", 2, "second", "", "2024-01-01T00:00:00Z", ""),
	)
	got := s.Query(Filter{})
	if len(got) != 2 || got[0].MarketTitle != "second" {
		t.Errorf("got %+v, want later line first", got)
	}
}

func TestQueryMixedOffsetsAndUnparsedStamps(t *testing.T) {
	s := loadStore(t,
		alertLine("polymarket", "WHALE_ENTRY", 1, "tokyo", "", "2024-01-01T10:00:00+09:00", ""),
		alertLine("polymarket", "WHALE_ENTRY", 2, "utc", "", "2024-01-01T05:00:00Z", ""),
		alertLine("polymarket", "WHALE_ENTRY", 3, "partial", "", "2024-01-01T07", ""),
	)

	var titles []string
	for _, a := range s.Query(Filter{}) {
		titles = append(titles, a.MarketTitle)
	}
	if want := []string{"utc", "tokyo", "partial"}; !reflect.DeepEqual(titles, want) {
		t.Errorf("order = %v, want %v", titles, want)
	}

	if latest, _ := s.LatestAlertTime(); latest != "2024-01-01T05:00:00Z" {
		t.Errorf("LatestAlertTime = %q", latest)
	}
	sum := s.Summarize(DefaultTopMarkets)
	if sum.EarliestAlertTime == nil || *sum.EarliestAlertTime != "2024-01-01T07" {
		t.Errorf("EarliestAlertTime = %v, want the unparsed stamp", sum.EarliestAlertTime)
	}
}

func TestQueryFilters(t *testing.T) {
	s := loadStore(t, fixture()...)
	minValue := func(v float64) *float64 { return &v }

	t.Run("min value example", func(t *testing.T) {
		s := loadStore(t, `{"platform":"polymarket","alert_type":"WHALE_ENTRY","value":75000,`+
			`"market_title":"Bitcoin above 100k","timestamp":"2024-01-01T00:00:00Z"}`)

		got := s.Query(Filter{MinValue: minValue(50000)})
		if len(got) != 1 || got[0].MarketTitle != "Bitcoin above 100k" {
			t.Errorf("min 50000 = %+v, want the single alert", got)
		}
		if got := s.Query(Filter{MinValue: minValue(100000)}); len(got) != 0 {
			t.Errorf("min 100000 = %+v, want empty", got)
		}
	})

	t.Run("min value is inclusive", func(t *testing.T) {
		got := s.Query(Filter{MinValue: minValue(50000)})
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		for _, a := range got {
			if a.Value < 50000 {
				t.Errorf("value %v below bound", a.Value)
			}
		}
	})

	t.Run("platform is exact and case sensitive", func(t *testing.T) {
		if got := s.Query(Filter{Platform: "Polymarket"}); len(got) != 0 {
			t.Errorf("case-insensitive match leaked: %+v", got)
		}
		for _, a := range s.Query(Filter{Platform: "kalshi"}) {
			if a.Platform != "kalshi" {
				t.Errorf("platform %q in kalshi query", a.Platform)
			}
		}
	})

	t.Run("platforms partition the store", func(t *testing.T) {
		total := 0
		for _, p := range []string{"polymarket", "kalshi"} {
			total += len(s.Query(Filter{Platform: p, Limit: 1000}))
		}
		if total != s.Count() {
			t.Errorf("partition total = %d, want %d", total, s.Count())
		}
	})

	t.Run("since is inclusive", func(t *testing.T) {
		got := s.Query(Filter{Since: "2024-01-03T00:00:00Z"})
		if len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
		got = s.Query(Filter{Since: "2024-01-03"})
		if len(got) != 2 {
			t.Errorf("date-only since: len = %d, want 2", len(got))
		}
	})

	t.Run("predicates are anded", func(t *testing.T) {
		got := s.Query(Filter{Platform: "polymarket", AlertType: "WHALE_EXIT", MinValue: minValue(100000)})
		if len(got) != 1 || got[0].Value != 120000 {
			t.Errorf("got %+v", got)
		}
		got = s.Query(Filter{Platform: "kalshi", AlertType: "WHALE_EXIT", Since: "2024-01-04T00:00:00Z"})
		if len(got) != 0 {
			t.Errorf("got %+v, want empty", got)
		}
	})

	t.Run("limit truncates", func(t *testing.T) {
		got := s.Query(Filter{Limit: 1})
		if len(got) != 1 || got[0].Timestamp != "2024-01-04T00:00:00Z" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestSearch(t *testing.T) {
	s := loadStore(t, fixture()...)

	got := s.Search("BITCOIN", 0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Timestamp != "2024-01-02T00:00:00Z" {
		t.Errorf("first = %s, want most recent", got[0].Timestamp)
	}

	// Outcome is searched too.
	if got := s.Search("lakers", 10); len(got) != 1 {
		t.Errorf("outcome search len = %d, want 1", len(got))
	}
	if got := s.Search("no such market", 10); len(got) != 0 {
		t.Errorf("got %+v, want empty", got)
	}
	if got := s.Search("", 2); len(got) != 2 {
		t.Errorf("empty query len = %d, want limit 2", len(got))
	}
}

func TestSummarize(t *testing.T) {
	s := loadStore(t, fixture()...)
	sum := s.Summarize(2)

	if sum.TotalAlerts != s.Count() {
		t.Errorf("TotalAlerts = %d, want %d", sum.TotalAlerts, s.Count())
	}
	if !sum.TotalVolume.Equal(decimal.NewFromInt(275000)) {
		t.Errorf("TotalVolume = %s, want 275000", sum.TotalVolume)
	}

	platformTotal := decimal.Zero
	for _, v := range sum.VolumeByPlatform {
		platformTotal = platformTotal.Add(v)
	}
	if !platformTotal.Equal(sum.TotalVolume) {
		t.Errorf("platform volumes sum to %s, want %s", platformTotal, sum.TotalVolume)
	}

	if sum.WhaleEntries != 2 || sum.WhaleExits != 2 {
		t.Errorf("entries/exits = %d/%d, want 2/2", sum.WhaleEntries, sum.WhaleExits)
	}
	if sum.UniqueWallets != 3 {
		t.Errorf("UniqueWallets = %d, want 3", sum.UniqueWallets)
	}
	if sum.AlertsByPlatform["polymarket"] != 2 || sum.AlertsByPlatform["kalshi"] != 2 {
		t.Errorf("AlertsByPlatform = %v", sum.AlertsByPlatform)
	}

	if len(sum.TopMarkets) != 2 {
		t.Fatalf("TopMarkets len = %d, want 2", len(sum.TopMarkets))
	}
	top := sum.TopMarkets[0]
	if top.MarketTitle != "Bitcoin above 100k" || top.AlertCount != 2 || !top.Volume.Equal(decimal.NewFromInt(195000)) {
		t.Errorf("top market = %+v", top)
	}
	if sum.TopMarkets[1].MarketTitle != "Lakers win title" {
		t.Errorf("second market = %q", sum.TopMarkets[1].MarketTitle)
	}

	if sum.EarliestAlertTime == nil || *sum.EarliestAlertTime != "2024-01-01T00:00:00Z" {
		t.Errorf("EarliestAlertTime = %v", sum.EarliestAlertTime)
	}
	if sum.LatestAlertTime == nil || *sum.LatestAlertTime != "2024-01-04T00:00:00Z" {
		t.Errorf("LatestAlertTime = %v", sum.LatestAlertTime)
	}
	if sum.LargestAlert == nil || sum.LargestAlert.Value != 120000 {
		t.Errorf("LargestAlert = %+v", sum.LargestAlert)
	}
}

func TestSummarizeTopMarketTiesByTitle(t *testing.T) {
	s := loadStore(t,
		alertLine("polymarket", "WHALE_ENTRY", 100, "Zeta", "", "2024-01-01T00:00:00Z", ""),
		alertLine("polymarket", "WHALE_ENTRY", 100, "Alpha", "", "2024-01-02T00:00:00Z", ""),
		alertLine("polymarket", "WHALE_ENTRY", 100, "Mu", "", "2024-01-03T00:00:00Z", ""),
	)

	for i := 0; i < 5; i++ {
		sum := s.Summarize(0)
		var titles []string
		for _, m := range sum.TopMarkets {
			titles = append(titles, m.MarketTitle)
		}
		if !reflect.DeepEqual(titles, []string{"Alpha", "Mu", "Zeta"}) {
			t.Fatalf("titles = %v", titles)
		}
	}
}

func TestSummarizeEmptyStore(t *testing.T) {
	s := New(nil)
	if err := s.Load(filepath.Join(t.TempDir(), "none.jsonl")); err != nil {
		t.Fatal(err)
	}
	sum := s.Summarize(5)
	if sum.TotalAlerts != 0 || !sum.TotalVolume.IsZero() {
		t.Errorf("non-zero summary for empty store: %+v", sum)
	}
	if sum.LatestAlertTime != nil || sum.LargestAlert != nil {
		t.Errorf("expected nil times/largest, got %+v", sum)
	}
	if sum.TopMarkets == nil {
		t.Error("TopMarkets should be an empty slice, not nil")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	path := writeLog(t, fixture()...)
	s := New(nil)

	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	count1, sum1, q1 := s.Count(), s.Summarize(10), s.Query(Filter{Limit: 100})

	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	count2, sum2, q2 := s.Count(), s.Summarize(10), s.Query(Filter{Limit: 100})

	if count1 != count2 {
		t.Errorf("Count changed: %d -> %d", count1, count2)
	}
	if !reflect.DeepEqual(q1, q2) {
		t.Error("Query results changed across loads")
	}
	if !sum1.TotalVolume.Equal(sum2.TotalVolume) || sum1.UniqueWallets != sum2.UniqueWallets ||
		len(sum1.TopMarkets) != len(sum2.TopMarkets) {
		t.Error("Summarize changed across loads")
	}
	if s.Skipped() != 2 {
		t.Errorf("Skipped() = %d after reload, want 2", s.Skipped())
	}
}
