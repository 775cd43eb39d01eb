package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultPollInterval = 2 * time.Second
	fetchTimeout        = 15 * time.Second

	// historyCap bounds the token-rate series; at the default interval
	// this keeps roughly four minutes of samples.
	historyCap = 120
)

type (
	tickMsg     time.Time
	snapshotMsg struct {
		snap Snapshot
		err  error
	}
)

// KeyMap defines the monitor keybindings.
type KeyMap struct {
	Quit    key.Binding
	Refresh key.Binding
	Period  key.Binding
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Period:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "cycle period")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	}
}

// Model is the bubbletea model for the monitor.
type Model struct {
	client   *Client
	interval time.Duration
	period   string

	keymap   KeyMap
	styles   Styles
	spinner  spinner.Model
	budget   progress.Model
	notifier *Notifier

	snap     Snapshot
	haveSnap bool
	fetchErr error
	loading  bool

	// history holds tokens consumed between successive polls.
	history   []float64
	lastTotal int64
	haveTotal bool

	selected int
	showHelp bool

	width  int
	height int
	ready  bool
}

// New creates a monitor model polling the given client. period is the usage
// period shown for the budget (day, month, or total).
func New(client *Client, interval time.Duration, period string) *Model {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if period == "" {
		period = "day"
	}

	styles := DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.Highlight

	// The bar fills as the budget burns down, so the gradient runs
	// green to red.
	bar := progress.New(
		progress.WithScaledGradient("#51cf66", "#ff6b6b"),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &Model{
		client:   client,
		interval: interval,
		period:   period,
		keymap:   DefaultKeyMap(),
		styles:   styles,
		spinner:  sp,
		budget:   bar,
		notifier: NewNotifier(),
	}
}

// Init starts the spinner, the first poll, and the tick loop.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), m.tick())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.loading {
			// Previous poll still in flight; do not stack requests.
			return m, m.tick()
		}
		return m, tea.Batch(m.fetch(), m.tick())

	case snapshotMsg:
		m.handleSnapshot(msg)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keymap.Refresh):
		return m.fetch()

	case key.Matches(msg, m.keymap.Period):
		m.period = nextPeriod(m.period)
		return m.fetch()

	case key.Matches(msg, m.keymap.Up):
		m.selected--
		m.clampSelection()

	case key.Matches(msg, m.keymap.Down):
		m.selected++
		m.clampSelection()
	}
	return nil
}

func (m *Model) handleSnapshot(msg snapshotMsg) {
	m.loading = false
	if msg.err != nil {
		// Keep the previous snapshot on screen; the header shows the
		// poll error until the next successful fetch.
		m.fetchErr = msg.err
		return
	}
	m.fetchErr = nil

	total := msg.snap.Usage.Totals.TotalTokens
	if m.haveTotal {
		delta := total - m.lastTotal
		if delta < 0 {
			delta = 0
		}
		m.history = append(m.history, float64(delta))
		if len(m.history) > historyCap {
			m.history = m.history[len(m.history)-historyCap:]
		}
	}
	m.lastTotal = total
	m.haveTotal = true

	m.snap = msg.snap
	m.haveSnap = true
	m.clampSelection()

	m.notifier.Observe(msg.snap)
}

func (m *Model) fetch() tea.Cmd {
	m.loading = true
	client, period := m.client, m.period
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		snap, err := fetchSnapshot(ctx, client, period)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.snap.Sessions) {
		m.selected = len(m.snap.Sessions) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) updateLayout() {
	barWidth := m.width - 34
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 10 {
		barWidth = 10
	}
	m.budget.Width = barWidth
}

func nextPeriod(period string) string {
	switch period {
	case "day":
		return "month"
	case "month":
		return "total"
	default:
		return "day"
	}
}

// contentWidth returns the usable inner width for cards and charts.
func (m *Model) contentWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

var _ tea.Model = (*Model)(nil)
