package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker()

	tr.SetAlertsLoaded(42)
	tr.SetSkipped("malformed", 3)
	tr.ObserveFetch("crypto", "ok", 120*time.Millisecond)
	tr.ObserveFetch("crypto", "ok", 80*time.Millisecond)
	tr.ObserveFetch("weather", "error", time.Second)
	tr.IncResearchQuery("ok")
	tr.IncResearchQuery("error")
	tr.IncResearchQuery("ok")
	tr.IncCommand("status", "ok")

	if got := testutil.ToFloat64(tr.alertsLoaded); got != 42 {
		t.Errorf("alerts_loaded = %v, want 42", got)
	}
	if got := testutil.ToFloat64(tr.skippedLines.WithLabelValues("malformed")); got != 3 {
		t.Errorf("skipped_lines{malformed} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(tr.fetches.WithLabelValues("crypto", "ok")); got != 2 {
		t.Errorf("fetches{crypto,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(tr.fetches.WithLabelValues("weather", "error")); got != 1 {
		t.Errorf("fetches{weather,error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(tr.researchQueries.WithLabelValues("ok")); got != 2 {
		t.Errorf("research_queries{ok} = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(tr.fetchDuration); got != 2 {
		t.Errorf("fetch duration series = %d, want 2", got)
	}
}

func TestNilTrackerIsNoop(t *testing.T) {
	var tr *Tracker

	tr.SetAlertsLoaded(1)
	tr.SetSkipped("empty", 1)
	tr.ObserveFetch("x", "ok", time.Second)
	tr.IncResearchQuery("ok")
	tr.IncCommand("status", "ok")

	if tr.Registry() != nil {
		t.Error("nil tracker should have no registry")
	}
	if err := tr.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteTextfile on nil tracker: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	tr := NewTracker()
	tr.IncCommand("fetch", "error")

	path := filepath.Join(t.TempDir(), "wwatcher.prom")
	if err := tr.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `wwatcher_commands_total{command="fetch",result="error"} 1`) {
		t.Errorf("textfile missing command counter:\n%s", data)
	}

	if err := tr.WriteTextfile(""); err != nil {
		t.Errorf("empty path should be a no-op, got %v", err)
	}
}
