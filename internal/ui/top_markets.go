package ui

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/polyinsider/wwatcher/internal/store"
)

// TopMarketsView displays the markets with the highest alert volume.
type TopMarketsView struct {
	table *tview.Table
}

// NewTopMarketsView creates a new top markets view.
func NewTopMarketsView() *TopMarketsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Top Markets ").SetBorder(true)

	return &TopMarketsView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *TopMarketsView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the top markets display. markets arrive already ranked.
func (v *TopMarketsView) Update(markets []store.MarketVolume) {
	v.table.Clear()

	for col, header := range []string{"Market", "Alerts", "Volume"} {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}

	if len(markets) == 0 {
		cell := tview.NewTableCell("No alerts yet...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1)
		v.table.SetCell(1, 0, cell)
		return
	}

	for i, m := range markets {
		row := i + 1

		cell := tview.NewTableCell(tview.Escape(truncate(m.MarketTitle, 48))).
			SetAlign(tview.AlignLeft).
			SetExpansion(1)
		v.table.SetCell(row, 0, cell)

		cell = tview.NewTableCell(fmt.Sprintf("%d", m.AlertCount)).
			SetAlign(tview.AlignRight)
		v.table.SetCell(row, 1, cell)

		cell = tview.NewTableCell(formatUSD(m.Volume)).
			SetAlign(tview.AlignRight)
		v.table.SetCell(row, 2, cell)
	}
}
