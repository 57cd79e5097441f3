// Package ui provides the terminal alert browser.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/wwatcher/internal/detector"
	"github.com/polyinsider/wwatcher/internal/provider"
	"github.com/polyinsider/wwatcher/internal/store"
)

// DefaultMaxRows caps the alert table.
const DefaultMaxRows = 500

// Loader builds a freshly loaded store. It is called on start and on every
// reload.
type Loader func() (*store.Store, error)

// Options configures an App.
type Options struct {
	Load       Loader
	Matcher    *provider.Matcher
	Thresholds detector.Thresholds
	TopMarkets int
	MaxRows    int
	Logger     *slog.Logger
}

// App is the alert browser application.
type App struct {
	app         *tview.Application
	layout      *tview.Flex
	searchInput *tview.InputField

	// Views
	alertTable     *AlertTableView
	summary        *SummaryView
	marketOverview *MarketOverviewView
	topMarkets     *TopMarketsView
	detail         *AlertDetailView

	opts Options

	// State
	mu       sync.Mutex
	st       *store.Store
	detector *detector.Detector
	query    string
}

// NewApp creates a new alert browser.
func NewApp(opts Options) *App {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.TopMarkets <= 0 {
		opts.TopMarkets = store.DefaultTopMarkets
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &App{
		app:  tview.NewApplication(),
		opts: opts,
	}

	// Initialize views
	a.alertTable = NewAlertTableView(a.selectAlert)
	a.summary = NewSummaryView()
	a.marketOverview = NewMarketOverviewView()
	a.topMarkets = NewTopMarketsView()
	a.detail = NewAlertDetailView()

	a.searchInput = tview.NewInputField().
		SetLabel(" / ").
		SetPlaceholder("search market title or outcome, Enter to apply, Esc to clear")
	a.searchInput.SetDoneFunc(a.searchDone)

	a.setupLayout()
	a.setupKeyboard()

	return a
}

// setupLayout creates the panel layout.
func (a *App) setupLayout() {
	// Top row: Summary | Platforms | Top Markets
	topRow := tview.NewFlex().
		AddItem(a.summary.Widget(), 0, 1, false).
		AddItem(a.marketOverview.Widget(), 0, 1, false).
		AddItem(a.topMarkets.Widget(), 0, 2, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 2, false).
		AddItem(a.alertTable.Widget(), 0, 3, true).
		AddItem(a.detail.Widget(), 0, 2, false).
		AddItem(a.searchInput, 1, 0, false)

	a.app.SetRoot(a.layout, true).SetFocus(a.alertTable.Widget())
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			a.Stop()
			return nil
		}
		// Typing into the search field must not trigger shortcuts.
		if a.app.GetFocus() == a.searchInput {
			return event
		}
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.reload()
				return nil
			case '/':
				a.app.SetFocus(a.searchInput)
				return nil
			}
		}
		return event
	})
}

// Run loads the store and starts the application (blocking).
func (a *App) Run() error {
	a.reload()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}

	return nil
}

// Stop stops the application.
func (a *App) Stop() {
	a.app.Stop()
}

// reload loads the store in the background and redraws when done.
func (a *App) reload() {
	go func() {
		st, err := a.opts.Load()
		if err != nil {
			a.opts.Logger.Warn("browser_reload_failed", "error", err)
		}
		a.app.QueueUpdateDraw(func() {
			a.apply(st, err)
		})
	}()
}

// apply installs a newly loaded store. Must run on the UI goroutine.
func (a *App) apply(st *store.Store, loadErr error) {
	if st == nil {
		a.summary.ShowError(loadErr)
		return
	}

	a.mu.Lock()
	a.st = st
	a.detector = detector.NewDetector(a.opts.Thresholds, st.All())
	a.mu.Unlock()

	sum := st.Summarize(a.opts.TopMarkets)
	a.summary.Update(sum, LoadInfo{
		Path:      st.Path(),
		Exists:    st.Exists(),
		LinesRead: st.LinesRead(),
		Skipped:   st.Skipped(),
		Err:       loadErr,
	})
	a.marketOverview.Update(sum)
	a.topMarkets.Update(sum.TopMarkets)
	a.showAlerts()
}

// showAlerts fills the table from the store and the current search.
func (a *App) showAlerts() {
	a.mu.Lock()
	st, query := a.st, a.query
	a.mu.Unlock()

	if st == nil {
		return
	}

	var alerts []store.Alert
	if query != "" {
		alerts = st.Search(query, a.opts.MaxRows)
	} else {
		alerts = st.Query(store.Filter{Limit: a.opts.MaxRows})
	}
	a.alertTable.SetAlerts(alerts, query)
	if len(alerts) == 0 {
		a.detail.Clear()
	}
}

func (a *App) searchDone(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		a.mu.Lock()
		a.query = a.searchInput.GetText()
		a.mu.Unlock()
	case tcell.KeyEscape:
		a.searchInput.SetText("")
		a.mu.Lock()
		a.query = ""
		a.mu.Unlock()
	default:
		return
	}
	a.showAlerts()
	a.app.SetFocus(a.alertTable.Widget())
}

// selectAlert shows indicators and provider matches for alert.
func (a *App) selectAlert(alert store.Alert) {
	a.mu.Lock()
	det := a.detector
	a.mu.Unlock()

	var findings []detector.Finding
	if det != nil {
		findings = det.Detect(alert)
	}
	var matches []provider.Match
	if a.opts.Matcher != nil {
		matches = a.opts.Matcher.Match(alert.MarketTitle, "")
	}
	a.detail.Update(alert, findings, matches)
}
