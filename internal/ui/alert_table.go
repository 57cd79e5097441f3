package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/wwatcher/internal/store"
)

var alertHeaders = []string{"Time", "Platform", "Type", "Value", "Price", "Market", "Outcome", "Wallet"}

// AlertTableView lists alerts, most recent first.
type AlertTableView struct {
	table    *tview.Table
	alerts   []store.Alert
	onSelect func(store.Alert)
}

// NewAlertTableView creates a new alert table. onSelect is called whenever
// the highlighted row changes.
func NewAlertTableView(onSelect func(store.Alert)) *AlertTableView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)

	table.SetTitle(" Alerts ").SetBorder(true)

	v := &AlertTableView{
		table:    table,
		onSelect: onSelect,
	}
	table.SetSelectionChangedFunc(func(row, _ int) {
		if row >= 1 && row <= len(v.alerts) && v.onSelect != nil {
			v.onSelect(v.alerts[row-1])
		}
	})

	v.updateTable("")
	return v
}

// Widget returns the tview primitive.
func (v *AlertTableView) Widget() tview.Primitive {
	return v.table
}

// SetAlerts replaces the listed alerts. query is shown in the title when set.
func (v *AlertTableView) SetAlerts(alerts []store.Alert, query string) {
	v.alerts = alerts
	v.updateTable(query)
	if len(alerts) > 0 {
		v.table.Select(1, 0)
		if v.onSelect != nil {
			v.onSelect(alerts[0])
		}
	}
}

// updateTable redraws the table from the current alerts.
func (v *AlertTableView) updateTable(query string) {
	v.table.Clear()

	for col, header := range alertHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}

	for i, alert := range v.alerts {
		row := i + 1
		color := tcell.ColorWhite
		switch alert.AlertType {
		case store.AlertWhaleEntry:
			color = tcell.ColorGreen
		case store.AlertWhaleExit:
			color = tcell.ColorRed
		}

		for col, text := range alertRow(alert) {
			cell := tview.NewTableCell(tview.Escape(text)).
				SetAlign(tview.AlignLeft)
			if col == 2 {
				cell.SetTextColor(color)
			}
			if col == 5 {
				cell.SetExpansion(1)
			}
			v.table.SetCell(row, col, cell)
		}
	}

	title := fmt.Sprintf(" Alerts (%d) ", len(v.alerts))
	if query != "" {
		title = fmt.Sprintf(" Alerts matching %q (%d) ", query, len(v.alerts))
	}
	v.table.SetTitle(title)
}

// alertRow formats one alert as table cells.
func alertRow(a store.Alert) []string {
	wallet := truncateAddress(a.WalletID)
	if wallet == "" {
		wallet = "unknown"
	}
	return []string{
		formatAlertTime(a.Timestamp),
		a.Platform,
		a.AlertType,
		fmt.Sprintf("$%.0f", a.Value),
		fmt.Sprintf("%.1f%%", a.PricePercent),
		truncate(a.MarketTitle, 48),
		truncate(a.Outcome, 16),
		wallet,
	}
}
