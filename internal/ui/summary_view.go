package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/polyinsider/wwatcher/internal/store"
)

// LoadInfo describes the last history load.
type LoadInfo struct {
	Path      string
	Exists    bool
	LinesRead int
	Skipped   int
	Err       error
}

// SummaryView displays history totals and load health.
type SummaryView struct {
	textView *tview.TextView
}

// NewSummaryView creates a new summary view.
func NewSummaryView() *SummaryView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Summary ").SetBorder(true)

	return &SummaryView{
		textView: textView,
	}
}

// Widget returns the tview primitive.
func (v *SummaryView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the summary display.
func (v *SummaryView) Update(sum store.Summary, info LoadInfo) {
	v.textView.Clear()
	fmt.Fprint(v.textView, formatSummary(sum, info))
}

// ShowError replaces the summary with a load failure.
func (v *SummaryView) ShowError(err error) {
	v.textView.Clear()
	fmt.Fprintf(v.textView, "[red]Load failed[-]\n%s\n\nPress r to retry.", tview.Escape(fmt.Sprint(err)))
}

func formatSummary(sum store.Summary, info LoadInfo) string {
	var b strings.Builder

	b.WriteString("[yellow]History[-]\n")
	switch {
	case info.Err != nil:
		fmt.Fprintf(&b, "[red]%s[-]\n", tview.Escape(info.Err.Error()))
	case !info.Exists:
		b.WriteString("[red]file not found[-]\n")
	default:
		fmt.Fprintf(&b, "Lines: %d (skipped %d)\n", info.LinesRead, info.Skipped)
	}
	fmt.Fprintf(&b, "%s\n\n", tview.Escape(truncate(info.Path, 40)))

	b.WriteString("[yellow]Alerts[-]\n")
	fmt.Fprintf(&b, "Total: %d\n", sum.TotalAlerts)
	fmt.Fprintf(&b, "Entries: %d  Exits: %d\n", sum.WhaleEntries, sum.WhaleExits)
	fmt.Fprintf(&b, "Wallets: %d\n", sum.UniqueWallets)
	fmt.Fprintf(&b, "Volume: %s\n", formatUSD(sum.TotalVolume))

	if sum.LatestAlertTime != nil {
		fmt.Fprintf(&b, "Latest: %s\n", formatAlertTime(*sum.LatestAlertTime))
	}
	if sum.LargestAlert != nil {
		fmt.Fprintf(&b, "Largest: $%.0f\n", sum.LargestAlert.Value)
	}

	return b.String()
}
