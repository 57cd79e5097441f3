package ui

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/polyinsider/wwatcher/internal/detector"
	"github.com/polyinsider/wwatcher/internal/provider"
	"github.com/polyinsider/wwatcher/internal/store"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"Bitcoin above 100k", 10, "Bitcoin..."},
		{"Élection présidentielle", 9, "Électi..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTruncateAddress(t *testing.T) {
	if got := truncateAddress("0x1234567890abcdef"); got != "0x1234...cdef" {
		t.Errorf("got %q", got)
	}
	if got := truncateAddress("0xshort"); got != "0xshort" {
		t.Errorf("got %q", got)
	}
}

func TestFormatUSD(t *testing.T) {
	tests := map[string]string{
		"0":          "$0",
		"999":        "$999",
		"1000":       "$1,000",
		"1234567.6":  "$1,234,568",
		"-25000":     "-$25,000",
		"100000.499": "$100,000",
	}
	for in, want := range tests {
		if got := formatUSD(decimal.RequireFromString(in)); got != want {
			t.Errorf("formatUSD(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatAlertTime(t *testing.T) {
	if got := formatAlertTime("not a time"); got != "not a time" {
		t.Errorf("got %q", got)
	}
	if got := formatAlertTime("2024-01-01T00:00:00Z"); len(got) != len("01-02 15:04:05") {
		t.Errorf("got %q", got)
	}
}

func TestAlertRow(t *testing.T) {
	row := alertRow(store.Alert{
		Platform:     "polymarket",
		AlertType:    store.AlertWhaleEntry,
		Value:        75000,
		PricePercent: 62.5,
		MarketTitle:  "Bitcoin above 100k",
		Outcome:      "Yes",
		Timestamp:    "bad",
	})
	want := []string{"bad", "polymarket", "WHALE_ENTRY", "$75000", "62.5%", "Bitcoin above 100k", "Yes", "unknown"}
	if !reflect.DeepEqual(row, want) {
		t.Errorf("row = %v, want %v", row, want)
	}
}

func TestFormatSummary(t *testing.T) {
	latest := "2024-01-01T00:00:00Z"
	sum := store.Summary{
		TotalAlerts:     3,
		TotalVolume:     decimal.NewFromInt(175000),
		WhaleEntries:    2,
		WhaleExits:      1,
		UniqueWallets:   2,
		LatestAlertTime: &latest,
	}

	out := formatSummary(sum, LoadInfo{Path: "/tmp/alerts.jsonl", Exists: true, LinesRead: 5, Skipped: 2})
	for _, want := range []string{"Lines: 5 (skipped 2)", "Total: 3", "Entries: 2  Exits: 1", "Volume: $175,000"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	if out := formatSummary(store.Summary{}, LoadInfo{Path: "x"}); !strings.Contains(out, "file not found") {
		t.Errorf("missing file not reported:\n%s", out)
	}
	if out := formatSummary(store.Summary{}, LoadInfo{Exists: true, Err: errors.New("permission denied")}); !strings.Contains(out, "permission denied") {
		t.Errorf("load error not reported:\n%s", out)
	}
}

func TestFormatDetail(t *testing.T) {
	alert := store.Alert{Platform: "kalshi", AlertType: store.AlertWhaleExit, MarketTitle: "Rain in NYC [today]", Value: 120000}
	findings := []detector.Finding{{Indicator: detector.IndicatorMajorCapital, Detail: "$120000 deployed"}}
	matches := []provider.Match{{Provider: provider.Provider{Name: "WeatherAPI", Category: "weather"}, MatchedKeywords: []string{"rain"}}}

	out := formatDetail(alert, findings, matches)
	for _, want := range []string{"MAJOR_CAPITAL", "$120000 deployed", "WeatherAPI (weather) rain", "Rain in NYC [today[]"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q:\n%s", want, out)
		}
	}

	empty := formatDetail(store.Alert{}, nil, nil)
	if !strings.Contains(empty, "none") || !strings.Contains(empty, "no provider matches") {
		t.Errorf("empty detail:\n%s", empty)
	}
}
