package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tokentab-io/tokentab/internal/transport/httpapi"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Usage: httpapi.UsageResponse{
			Period:         "day",
			SessionsActive: 1,
			Totals:         httpapi.TotalsBody{Requests: 3, PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100, CostUSD: 0.0012},
			Budget:         httpapi.BudgetStatus{TokensLimit: 1000, TokensRemaining: 900},
		},
		Sessions: []SessionRow{
			{ID: "s2", Label: "planner", Model: "gpt-4o", Calls: 2, TotalTokens: 60, WarnThreshold: 50},
			{ID: "s1", Label: "scratch", Model: "gpt-4o-mini", Calls: 1, TotalTokens: 40},
		},
		Health:  httpapi.HealthResponse{Status: "ok"},
		TakenAt: time.Now(),
	}
}

func testModel() *Model {
	m := New(nil, time.Second, "day")
	// Swallow desktop notifications in tests.
	m.notifier.send = func(title, body string) error { return nil }
	return m
}

func pressKey(m *Model, r rune) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestNew_Defaults(t *testing.T) {
	m := New(nil, 0, "")
	if m.interval != defaultPollInterval {
		t.Errorf("interval = %v, want %v", m.interval, defaultPollInterval)
	}
	if m.period != "day" {
		t.Errorf("period = %q, want day", m.period)
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := testModel()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	if !m.ready {
		t.Fatal("model not ready after window size")
	}
	if m.width != 100 || m.height != 40 {
		t.Errorf("size = %dx%d", m.width, m.height)
	}
	if got := m.budget.Width; got != 60 {
		t.Errorf("budget width = %d, want 60", got)
	}

	m.Update(tea.WindowSizeMsg{Width: 30, Height: 20})
	if got := m.budget.Width; got != 10 {
		t.Errorf("budget width = %d, want 10 at narrow widths", got)
	}
}

func TestModel_Snapshot(t *testing.T) {
	m := testModel()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(snapshotMsg{snap: testSnapshot()})

	if !m.haveSnap {
		t.Fatal("haveSnap = false after snapshot")
	}
	if m.loading {
		t.Error("loading should clear once the snapshot lands")
	}
	view := m.View()
	if !strings.Contains(view, "planner") {
		t.Errorf("view missing session label:\n%s", view)
	}
	if !strings.Contains(view, "over threshold") {
		t.Errorf("view missing threshold status:\n%s", view)
	}
}

func TestModel_SnapshotError(t *testing.T) {
	m := testModel()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(snapshotMsg{snap: testSnapshot()})
	m.Update(snapshotMsg{err: &APIError{Status: 500, Message: "boom"}})

	if !m.haveSnap {
		t.Fatal("snapshot dropped on poll error")
	}
	view := m.View()
	if !strings.Contains(view, "poll failed") {
		t.Errorf("view missing poll error:\n%s", view)
	}
	if !strings.Contains(view, "planner") {
		t.Errorf("stale snapshot should stay on screen:\n%s", view)
	}

	// A later success clears the banner.
	m.Update(snapshotMsg{snap: testSnapshot()})
	if m.fetchErr != nil {
		t.Error("fetchErr not cleared by a successful poll")
	}
}

func TestModel_RateHistory(t *testing.T) {
	m := testModel()

	snap := testSnapshot()
	snap.Usage.Totals.TotalTokens = 100
	m.Update(snapshotMsg{snap: snap})
	if len(m.history) != 0 {
		t.Fatalf("first sample must only set the baseline, history = %v", m.history)
	}

	snap.Usage.Totals.TotalTokens = 250
	m.Update(snapshotMsg{snap: snap})
	snap.Usage.Totals.TotalTokens = 250
	m.Update(snapshotMsg{snap: snap})

	if len(m.history) != 2 || m.history[0] != 150 || m.history[1] != 0 {
		t.Errorf("history = %v, want [150 0]", m.history)
	}
}

func TestModel_HistoryCap(t *testing.T) {
	m := testModel()
	snap := testSnapshot()
	for i := 0; i < historyCap+10; i++ {
		snap.Usage.Totals.TotalTokens = int64(i * 10)
		m.Update(snapshotMsg{snap: snap})
	}
	if len(m.history) != historyCap {
		t.Errorf("len(history) = %d, want %d", len(m.history), historyCap)
	}
}

func TestModel_Quit(t *testing.T) {
	m := testModel()
	_, cmd := pressKey(m, 'q')
	if cmd == nil {
		t.Fatal("quit produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command did not produce tea.QuitMsg")
	}
}

func TestModel_PeriodCycle(t *testing.T) {
	m := testModel()
	for _, want := range []string{"month", "total", "day"} {
		_, cmd := pressKey(m, 'p')
		if m.period != want {
			t.Errorf("period = %q, want %q", m.period, want)
		}
		if cmd == nil {
			t.Error("period switch should trigger a refetch")
		}
	}
}

func TestModel_Selection(t *testing.T) {
	m := testModel()
	m.Update(snapshotMsg{snap: testSnapshot()})

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.selected != 1 {
		t.Errorf("selected = %d after down, want 1", m.selected)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.selected != 1 {
		t.Errorf("selected = %d, must clamp at last row", m.selected)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.selected != 0 {
		t.Errorf("selected = %d, must clamp at first row", m.selected)
	}
}

func TestModel_HelpToggle(t *testing.T) {
	m := testModel()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(snapshotMsg{snap: testSnapshot()})

	pressKey(m, '?')
	if !m.showHelp {
		t.Fatal("help not shown after ?")
	}
	if view := m.View(); !strings.Contains(view, "Keys") {
		t.Errorf("view missing help card:\n%s", view)
	}
	pressKey(m, '?')
	if m.showHelp {
		t.Error("help not hidden after second ?")
	}
}

func TestModel_TickSchedulesNextPoll(t *testing.T) {
	m := testModel()
	m.loading = false
	_, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick produced no command")
	}
}

func TestModel_TickWhileLoading(t *testing.T) {
	m := testModel()
	m.loading = true
	_, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick while loading must still reschedule")
	}
	if !m.loading {
		t.Error("loading flag must survive a skipped poll")
	}
}

func TestNextPeriod(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"day", "month"},
		{"month", "total"},
		{"total", "day"},
		{"bogus", "day"},
	}
	for _, tt := range tests {
		if got := nextPeriod(tt.in); got != tt.want {
			t.Errorf("nextPeriod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-rather-long-label", 10, "a-rather-…"},
		{"héllo wörld", 6, "héllo…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestSessionRow_OverThreshold(t *testing.T) {
	tests := []struct {
		name string
		row  SessionRow
		want bool
	}{
		{"no threshold", SessionRow{TotalTokens: 500}, false},
		{"under", SessionRow{TotalTokens: 99, WarnThreshold: 100}, false},
		{"equal", SessionRow{TotalTokens: 100, WarnThreshold: 100}, false},
		{"over", SessionRow{TotalTokens: 101, WarnThreshold: 100}, true},
	}
	for _, tt := range tests {
		if got := tt.row.OverThreshold(); got != tt.want {
			t.Errorf("%s: OverThreshold() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSessionRow_Name(t *testing.T) {
	if got := (SessionRow{ID: "abc", Label: "work"}).Name(); got != "work" {
		t.Errorf("Name() = %q, want label", got)
	}
	if got := (SessionRow{ID: "abc"}).Name(); got != "abc" {
		t.Errorf("Name() = %q, want id fallback", got)
	}
}

func TestModel_ViewBeforeReady(t *testing.T) {
	m := testModel()
	if view := m.View(); !strings.Contains(view, "starting") {
		t.Errorf("view = %q", view)
	}
}

func TestModel_ViewWaitingForFirstPoll(t *testing.T) {
	m := testModel()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	if view := m.View(); !strings.Contains(view, "waiting for first poll") {
		t.Errorf("view missing waiting line:\n%s", view)
	}
}
