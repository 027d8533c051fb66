package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dialcast/internal/campaign"
)

// TickMsg fires a scheduled poll.
type TickMsg time.Time

// RefreshedMsg reports the outcome of one poll cycle.
type RefreshedMsg struct {
	Err error
}

// ExportedMsg reports the outcome of an export keypress.
type ExportedMsg struct {
	Path string
	Err  error
}

// RecordReloadedMsg carries a freshly re-read campaign record, sent from the
// file watcher goroutine via Program.Send.
type RecordReloadedMsg struct {
	Record *campaign.Record
}

// Advisors carries the read-only context lines shown under the stats:
// calling hours and org concurrency, resolved once at startup.
type Advisors struct {
	Schedule    string
	Concurrency string
}

// WatchModel is the live campaign dashboard.
type WatchModel struct {
	watcher      *campaign.Watcher
	pollInterval time.Duration
	exportPath   string
	advisors     Advisors

	width    int
	height   int
	progress progress.Model
	spinner  spinner.Model
	viewport viewport.Model
	styles   Styles

	statusLine string
	quitting   bool
}

// NewWatchModel builds the dashboard for one campaign watcher.
func NewWatchModel(watcher *campaign.Watcher, pollInterval time.Duration, exportPath string, advisors Advisors) WatchModel {
	p := progress.New(progress.WithDefaultGradient())
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(80, 20)
	return WatchModel{
		watcher:      watcher,
		pollInterval: pollInterval,
		exportPath:   exportPath,
		advisors:     advisors,
		progress:     p,
		spinner:      sp,
		viewport:     vp,
		styles:       DefaultStyles(),
		width:        80,
		height:       24,
	}
}

// Init kicks off the first poll immediately.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd(), m.tickCmd())
}

func (m WatchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m WatchModel) refreshCmd() tea.Cmd {
	watcher := m.watcher
	return func() tea.Msg {
		return RefreshedMsg{Err: watcher.Refresh(context.Background())}
	}
}

func (m WatchModel) exportCmd() tea.Cmd {
	watcher := m.watcher
	path := m.exportPath
	return func() tea.Msg {
		return ExportedMsg{Path: path, Err: watcher.ExportResults(path)}
	}
}

// Update handles messages.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.statusLine = "refreshing..."
			return m, m.refreshCmd()
		case "p":
			if m.watcher.TogglePause() {
				m.statusLine = "polling paused"
			} else {
				m.statusLine = "polling resumed"
			}
		case "e":
			m.statusLine = "exporting..."
			return m, m.exportCmd()
		case "k", "up":
			m.viewport.LineUp(1)
		case "j", "down":
			m.viewport.LineDown(1)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.progress.Width = msg.Width - 8

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case RefreshedMsg:
		if msg.Err != nil {
			m.statusLine = fmt.Sprintf("poll failed: %v (will retry)", msg.Err)
		} else {
			m.statusLine = ""
		}
		if m.watcher.IsComplete() {
			m.quitting = true
			return m, tea.Quit
		}

	case ExportedMsg:
		if msg.Err != nil {
			m.statusLine = fmt.Sprintf("export failed: %v", msg.Err)
		} else {
			m.statusLine = fmt.Sprintf("exported to %s", msg.Path)
		}

	case RecordReloadedMsg:
		m.watcher.ReloadRecord(msg.Record)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m WatchModel) View() string {
	if m.quitting {
		return m.renderSummary()
	}

	record := m.watcher.Record()
	stats := m.watcher.Stats()

	var sb strings.Builder

	title := m.styles.Header.Render(fmt.Sprintf(" %s ", record.CampaignID))
	state := m.renderState()
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", state) + "\n\n")

	sb.WriteString(m.styles.Bold.Render("Progress") + "\n")
	sb.WriteString(m.progress.ViewAs(float64(m.watcher.Progress())/100) + "\n")
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf(
		"%d/%d completed  |  %d calls/min  |  ETA %s",
		stats.Count(campaign.StatusCompleted), record.TotalCalls,
		m.watcher.CallsPerMinute(), m.watcher.EstimatedTimeRemaining(),
	)) + "\n\n")

	sb.WriteString(m.renderCounts(stats) + "\n\n")
	if m.advisors.Schedule != "" {
		sb.WriteString(m.styles.Muted.Render("Hours: "+m.advisors.Schedule) + "\n")
	}
	if m.advisors.Concurrency != "" {
		sb.WriteString(m.styles.Muted.Render("Capacity: "+m.advisors.Concurrency) + "\n")
	}
	if m.advisors.Schedule != "" || m.advisors.Concurrency != "" {
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderActivity())

	if m.statusLine != "" {
		sb.WriteString("\n" + m.styles.Warning.Render(m.statusLine))
	}

	hints := m.styles.Footer.Render("[r] Refresh  [p] Pause/Resume  [e] Export  [q] Quit")
	sb.WriteString("\n" + m.styles.RenderDivider(m.width) + "\n" + hints)

	return m.styles.Content.Render(sb.String())
}

func (m WatchModel) renderState() string {
	switch m.watcher.State() {
	case campaign.StateSyncing:
		return m.styles.Info.Render(m.spinner.View() + " SYNCING")
	case campaign.StatePaused:
		return m.styles.Warning.Render("PAUSED")
	case campaign.StateComplete:
		return m.styles.Success.Render("COMPLETE")
	default:
		return m.styles.Muted.Render("IDLE")
	}
}

func (m WatchModel) renderCounts(stats *campaign.Stats) string {
	var parts []string
	for _, status := range campaign.AllStatuses {
		n := stats.Count(status)
		if n == 0 {
			continue
		}
		style := m.styles.Muted
		switch status {
		case campaign.StatusCompleted:
			style = m.styles.Success
		case campaign.StatusRunning:
			style = m.styles.Info
		case campaign.StatusFailed, campaign.StatusCanceled:
			style = m.styles.Error
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s %d", status, n)))
	}
	if len(parts) == 0 {
		return m.styles.Muted.Render("no calls observed yet")
	}
	return strings.Join(parts, m.styles.Muted.Render("  |  "))
}

func (m WatchModel) renderActivity() string {
	events := m.watcher.Activity()
	if len(events) == 0 {
		return m.styles.Muted.Render("Waiting for activity...")
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Bold.Render("Recent Activity") + "\n")
	// Newest first.
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		line := fmt.Sprintf(
			" %s  %s  %s → %s",
			e.Timestamp.Local().Format("15:04:05"),
			e.Endpoint,
			emptyDash(string(e.OldStatus)),
			e.NewStatus,
		)
		if e.DurationSeconds > 0 {
			line += fmt.Sprintf("  (%.0fs)", e.DurationSeconds)
		}
		style := m.styles.Muted
		switch e.NewStatus {
		case campaign.StatusCompleted:
			style = m.styles.Success
		case campaign.StatusFailed:
			style = m.styles.Error
		}
		sb.WriteString(style.Render(line) + "\n")
	}
	return sb.String()
}

func (m WatchModel) renderSummary() string {
	record := m.watcher.Record()
	stats := m.watcher.Stats()

	var sb strings.Builder
	if m.watcher.IsComplete() {
		sb.WriteString(m.styles.Success.Render(fmt.Sprintf("Campaign %s complete.", record.CampaignID)) + "\n")
	} else {
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("Stopped watching %s.", record.CampaignID)) + "\n")
	}
	for _, status := range campaign.AllStatuses {
		if n := stats.Count(status); n > 0 {
			sb.WriteString(fmt.Sprintf("  %-10s %d\n", status, n))
		}
	}
	return sb.String()
}

func emptyDash(s string) string {
	if s == "" {
		return "new"
	}
	return s
}
