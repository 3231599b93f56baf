package monitor

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gogpu/pano"
)

// Scroller moves the grid viewport.
type Scroller interface {
	ScrollBy(dx, dy int)
}

// sampleMsg carries an on-demand snapshot; tickMsg a periodic one.
type (
	sampleMsg Snapshot
	tickMsg   Snapshot
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var stateStyles = map[pano.State]lipgloss.Style{
	pano.Idle:              labelStyle,
	pano.AwaitingAdmission: warnStyle,
	pano.Active:            okStyle,
	pano.PendingTeardown:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	pano.Destroyed:         criticalStyle,
}

func levelStyle(l Level) lipgloss.Style {
	switch l {
	case LevelCritical:
		return criticalStyle
	case LevelWarn:
		return warnStyle
	default:
		return okStyle
	}
}

// Model is a bubbletea model showing live snapshots. Arrow keys and j/k
// scroll the grid.
type Model struct {
	collector *Collector
	scroller  Scroller
	interval  time.Duration
	step      int

	snapshot Snapshot
	sampled  bool
	width    int
}

// NewModel creates a dashboard sampling every interval and scrolling by
// step pixels per key press.
func NewModel(c *Collector, s Scroller, interval time.Duration, step int) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{collector: c, scroller: s, interval: interval, step: step}
}

// Init takes the first sample and starts the periodic refresh.
func (model Model) Init() tea.Cmd {
	return tea.Batch(model.sample(), model.tick())
}

func (model Model) sample() tea.Cmd {
	collector := model.collector
	return func() tea.Msg { return sampleMsg(collector.Sample()) }
}

func (model Model) tick() tea.Cmd {
	collector := model.collector
	return tea.Tick(model.interval, func(time.Time) tea.Msg {
		return tickMsg(collector.Sample())
	})
}

// Update handles keys, resizes and samples.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch message.String() {
		case "q", "ctrl+c", "esc":
			return model, tea.Quit
		case "down", "j":
			model.scroll(model.step)
		case "up", "k":
			model.scroll(-model.step)
		case "pgdown", " ":
			model.scroll(model.step * 4)
		case "pgup":
			model.scroll(-model.step * 4)
		default:
			return model, nil
		}
		return model, model.sample()
	case tea.WindowSizeMsg:
		model.width = message.Width
		return model, nil
	case sampleMsg:
		model.snapshot = Snapshot(message)
		model.sampled = true
		return model, nil
	case tickMsg:
		model.snapshot = Snapshot(message)
		model.sampled = true
		return model, model.tick()
	}
	return model, nil
}

func (model *Model) scroll(dy int) {
	if model.scroller != nil {
		model.scroller.ScrollBy(0, dy)
	}
}

// View renders the dashboard.
func (model Model) View() string {
	if !model.sampled {
		return "sampling...\n"
	}
	out := Render(model.snapshot) + "\n" + helpStyle.Render("j/k scroll  space/pgup page  q quit")
	if model.width > 0 {
		out = lipgloss.NewStyle().MaxWidth(model.width).Render(out)
	}
	return out + "\n"
}

// Render formats a snapshot as a styled panel.
func Render(s Snapshot) string {
	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), value)
	}

	active := fmt.Sprintf("%d / %d", s.Pool.Active, s.Pool.MaxConcurrent)
	row("viewers", levelStyle(s.ActiveLevel()).Render(active))
	row("fps", levelStyle(s.FPSLevel()).Render(fmt.Sprintf("%.1f", s.FPS)))
	row("reserved", fmt.Sprintf("%d", s.Pool.Reserved))
	row("pending", fmt.Sprintf("%d", s.Pool.Pending))
	row("evictions", fmt.Sprintf("capacity %d  deferred %d  forced %d",
		s.Pool.CapacityEvictions, s.Pool.DeferredEvictions, s.Pool.ForcedEvictions))
	row("admission", fmt.Sprintf("granted %d  denied %d", s.Pool.Admissions, s.Pool.Denials))
	if s.HeapBytes > 0 {
		row("heap", fmt.Sprintf("%.1f MiB", float64(s.HeapBytes)/(1<<20)))
	}
	row("uptime", s.Uptime.Truncate(time.Second).String())

	var cards []string
	for _, c := range s.Cards {
		line := stateStyles[c.State].Render(fmt.Sprintf("%-18s", c.State))
		switch {
		case c.Degraded:
			line += warnStyle.Render(" placeholder")
		case c.Queued:
			line += warnStyle.Render(" waiting for resources")
		}
		if c.Failures > 0 {
			line += criticalStyle.Render(fmt.Sprintf(" failures=%d", c.Failures))
		}
		cards = append(cards, fmt.Sprintf("%-12s %s", shortID(c.ID), line))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("pano monitor")+" "+levelStyle(s.Level()).Render(s.Level().String()),
		strings.TrimRight(b.String(), "\n"),
	)
	if len(cards) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", strings.Join(cards, "\n"))
	}
	return panelStyle.Render(body)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
