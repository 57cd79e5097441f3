package ui

import (
	"fmt"
	"sort"

	"github.com/rivo/tview"

	"github.com/polyinsider/wwatcher/internal/store"
)

// MarketOverviewView displays alert counts and volume per platform and type.
type MarketOverviewView struct {
	table *tview.Table
}

// NewMarketOverviewView creates a new market overview view.
func NewMarketOverviewView() *MarketOverviewView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Platforms ").SetBorder(true)

	return &MarketOverviewView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *MarketOverviewView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the view from a summary.
func (v *MarketOverviewView) Update(sum store.Summary) {
	v.table.Clear()

	for col, header := range []string{"Platform", "Alerts", "Volume"} {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false).
			SetExpansion(1)
		v.table.SetCell(0, col, cell)
	}

	row := 1
	for _, platform := range sortedKeys(sum.AlertsByPlatform) {
		cells := []string{
			platform,
			fmt.Sprintf("%d", sum.AlertsByPlatform[platform]),
			formatUSD(sum.VolumeByPlatform[platform]),
		}
		for col, text := range cells {
			v.table.SetCell(row, col, tview.NewTableCell(tview.Escape(text)).SetExpansion(1))
		}
		row++
	}

	// Alert types below the platforms
	row++
	for _, alertType := range sortedKeys(sum.AlertsByType) {
		v.table.SetCell(row, 0, tview.NewTableCell(tview.Escape(alertType)).SetTextColor(tview.Styles.SecondaryTextColor))
		v.table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%d", sum.AlertsByType[alertType])))
		row++
	}

	v.table.SetTitle(fmt.Sprintf(" Platforms (%d) ", len(sum.AlertsByPlatform)))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
