package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// Dashboard panel indices.
const (
	panelSessions = iota
	panelMetrics
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	sessions    *sessionSnapshot
	metricsData *metricsSnapshot
	alerts      []alertSnapshot

	// State.
	loading bool
	err     error
}

type sessionSnapshot struct {
	active     int
	trashed    int
	byModality map[models.Modality]int
	summary    models.SessionSummary
}

type metricsSnapshot struct {
	sessionsCreated   int
	measurementsSaved int
	saveFailures      int
	exports           int
	eventCount        int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	sessions *sessionSnapshot
	metrics  *metricsSnapshot
	alerts   []alertSnapshot
	err      error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	trashedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelSessions,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sessions = msg.sessions
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" IOS Scale Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	sessionsPanel := m.renderSessionsPanel()
	metricsPanel := m.renderMetricsPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		sessionsPanel = m.applyPanelStyle(panelSessions, sessionsPanel, colWidth-4)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, sessionsPanel, metricsPanel, alertsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		sessionsPanel = m.applyPanelStyle(panelSessions, sessionsPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, sessionsPanel, metricsPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderSessionsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Sessions"))
	b.WriteString("\n")

	if m.sessions == nil || m.sessions.active+m.sessions.trashed == 0 {
		b.WriteString("  No sessions captured.")
		return b.String()
	}

	for _, mod := range models.AllModalities {
		count := m.sessions.byModality[mod]
		if count == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  %-24s %d\n", core.DisplayName(mod), count))
	}

	b.WriteString("\n")
	b.WriteString(activeStyle.Render(fmt.Sprintf("  %-14s %d", "Active", m.sessions.active)))
	b.WriteString("\n")
	b.WriteString(trashedStyle.Render(fmt.Sprintf("  %-14s %d", "In trash", m.sessions.trashed)))
	if sum := m.sessions.summary; sum.Count > 0 {
		sep := decimalSeparator()
		b.WriteString(fmt.Sprintf("\n\n  %d measurement(s), avg %s", sum.Count, core.FormatValue(sum.Average, 2, sep)))
	}

	return b.String()
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value int
	}{
		{"Events", md.eventCount},
		{"Sessions", md.sessionsCreated},
		{"Saved", md.measurementsSaved},
		{"Failed saves", md.saveFailures},
		{"Exports", md.exports},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	if Library != nil {
		active := Library.List(models.SessionQuery{ActiveOnly: true})
		snap := &sessionSnapshot{
			active:     len(active),
			trashed:    len(Library.List(models.SessionQuery{TrashedOnly: true})),
			byModality: make(map[models.Modality]int),
			summary:    core.SummarizeSessions(active),
		}
		for _, s := range active {
			snap.byModality[s.Modality]++
		}
		result.sessions = snap
	}

	// Load metrics from MetricsCalc.
	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			sessionsCreated:   metrics.SessionsCreated,
			measurementsSaved: metrics.MeasurementsSaved,
			saveFailures:      metrics.SaveFailures,
			exports:           metrics.Exports,
			eventCount:        metrics.EventCount,
		}
	}

	// Load alerts from AlertEngine.
	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		// Sort alerts by severity: high first, then medium, then low.
		sort.Slice(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for sessions, metrics and alerts",
	Long: `Launch an interactive terminal dashboard showing captured sessions per
modality, capture metrics for the last 7 days and active alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Library == nil {
			return fmt.Errorf("session library not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
