package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/tview"
	"github.com/shopspring/decimal"

	"github.com/polyinsider/wwatcher/internal/detector"
	"github.com/polyinsider/wwatcher/internal/provider"
	"github.com/polyinsider/wwatcher/internal/store"
)

// AlertDetailView shows anomaly indicators and matching data providers for
// the selected alert.
type AlertDetailView struct {
	textView *tview.TextView
}

// NewAlertDetailView creates a new detail view.
func NewAlertDetailView() *AlertDetailView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)

	textView.SetTitle(" Details ").SetBorder(true)

	return &AlertDetailView{textView: textView}
}

// Widget returns the tview primitive.
func (v *AlertDetailView) Widget() tview.Primitive {
	return v.textView
}

// Update shows alert with its findings and provider matches.
func (v *AlertDetailView) Update(alert store.Alert, findings []detector.Finding, matches []provider.Match) {
	v.textView.Clear()
	fmt.Fprint(v.textView, formatDetail(alert, findings, matches))
	v.textView.ScrollToBeginning()
}

// Clear empties the view.
func (v *AlertDetailView) Clear() {
	v.textView.Clear()
	fmt.Fprint(v.textView, "No alert selected")
}

func formatDetail(alert store.Alert, findings []detector.Finding, matches []provider.Match) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[white::b]%s[-::-]\n", tview.Escape(alert.MarketTitle))
	fmt.Fprintf(&b, "%s %s %s on %s at %.1f%% for $%.0f, wallet %s\n\n",
		tview.Escape(alert.Platform),
		tview.Escape(alert.AlertType),
		tview.Escape(alert.Action),
		tview.Escape(alert.Outcome),
		alert.PricePercent,
		alert.Value,
		tview.Escape(truncateAddress(alert.WalletID)),
	)

	b.WriteString("[yellow]Anomaly indicators[-]\n")
	if len(findings) == 0 {
		b.WriteString("  none\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "  [red]%s[-] %s\n", f.Indicator, tview.Escape(f.Detail))
	}

	b.WriteString("\n[yellow]Data providers[-]\n")
	if len(matches) == 0 {
		b.WriteString("  no provider matches this market\n")
	}
	for _, m := range matches {
		fmt.Fprintf(&b, "  %s (%s) %s\n",
			tview.Escape(m.Provider.Name),
			tview.Escape(m.Provider.Category),
			tview.Escape(strings.Join(m.MatchedKeywords, ", ")),
		)
	}

	return b.String()
}

// truncateAddress truncates a wallet address for display.
func truncateAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

// formatAlertTime renders an alert timestamp as local "01-02 15:04:05",
// or the raw string when it does not parse.
func formatAlertTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("01-02 15:04:05")
}

// formatUSD renders a whole-dollar amount with thousands separators.
func formatUSD(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
