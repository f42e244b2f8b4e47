package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// Drag distances, in points, produced by one key press.
const (
	coarseStep     = 10.0
	fineStep       = 1.0
	scaleStep      = 20.0
	membershipStep = 20.0
	barWidth       = 40
)

var (
	valueStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	barFillStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	barRestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	savedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	inSetStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)

	feedbackStyles = map[core.FeedbackEvent]lipgloss.Style{
		core.FeedbackLight:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		core.FeedbackMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		core.FeedbackBoundary: lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		core.FeedbackSuccess:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
	}
)

// captureModel drives one CaptureFlow from the keyboard. Horizontal keys
// drag the primary value, vertical keys resize circles or move the selected
// membership entity.
type captureModel struct {
	flow     *core.CaptureFlow
	sep      string
	entity   core.MembershipEntity
	feedback []core.FeedbackEvent
	status   string
	err      error

	done      bool
	discarded bool
}

func newCaptureModel(flow *core.CaptureFlow, sep string) captureModel {
	return captureModel{flow: flow, sep: sep}
}

func (m captureModel) Init() tea.Cmd {
	return nil
}

func (m captureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "q", "esc", "ctrl+c":
		discarded, err := m.flow.Exit()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.discarded = discarded
		m.done = true
		return m, tea.Quit
	case "f":
		if err := m.flow.Finish(); err != nil {
			m.err = err
			return m, nil
		}
		m.done = true
		return m, tea.Quit
	case "enter", " ":
		saved, err := m.flow.Save()
		if err != nil {
			m.err = err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.feedback = nil
		m.status = fmt.Sprintf("Saved %s (%d in session)",
			core.FormatValue(saved.PrimaryValue, 2, m.sep), m.flow.SavedCount())
		return m, nil
	case "r":
		m.flow.Mapper().Reset()
		m.feedback = nil
		m.status = "Reset to start of measurement"
		return m, nil
	}

	m.feedback = m.gesture(key.String())
	return m, nil
}

// gesture translates a key into a drag on the live mapper. Each key press
// is one complete gesture.
func (m *captureModel) gesture(key string) []core.FeedbackEvent {
	switch mapper := m.flow.Mapper().(type) {
	case *core.ScalarMapper:
		if d, ok := horizontalDelta(key); ok {
			events := mapper.Drag(d)
			mapper.EndDrag()
			return events
		}
	case *core.ScaledOverlapMapper:
		if d, ok := horizontalDelta(key); ok {
			events := mapper.Drag(d)
			mapper.EndDrag()
			return events
		}
		target, d, ok := resizeDelta(key)
		if ok {
			events := mapper.Resize(target, d)
			mapper.EndResize(target)
			return events
		}
	case *core.MembershipMapper:
		if key == "tab" {
			m.entity = 1 - m.entity
			return nil
		}
		dx, dy, ok := membershipDelta(key)
		if ok {
			_, events := mapper.Drag(m.entity, dx, dy)
			return events
		}
	}
	return m.feedback
}

func horizontalDelta(key string) (float64, bool) {
	switch key {
	case "left", "h":
		return -coarseStep, true
	case "right", "l":
		return coarseStep, true
	case "shift+left", "H":
		return -fineStep, true
	case "shift+right", "L":
		return fineStep, true
	}
	return 0, false
}

func resizeDelta(key string) (core.ScaleTarget, float64, bool) {
	switch key {
	case "up", "k":
		return core.ScaleSelf, scaleStep, true
	case "down", "j":
		return core.ScaleSelf, -scaleStep, true
	case "shift+up", "K":
		return core.ScaleOther, scaleStep, true
	case "shift+down", "J":
		return core.ScaleOther, -scaleStep, true
	}
	return 0, 0, false
}

func membershipDelta(key string) (float64, float64, bool) {
	switch key {
	case "left", "h":
		return -membershipStep, 0, true
	case "right", "l":
		return membershipStep, 0, true
	case "up", "k":
		return 0, -membershipStep, true
	case "down", "j":
		return 0, membershipStep, true
	}
	return 0, 0, false
}

func (m captureModel) View() string {
	if m.done {
		return ""
	}
	desc := m.flow.Descriptor()
	pos := m.flow.Mapper().Position()

	var b strings.Builder
	b.WriteString(titleStyle.Render(" " + desc.DisplayName + " "))
	b.WriteString("\n\n")

	if mm, ok := m.flow.Mapper().(*core.MembershipMapper); ok {
		b.WriteString(m.renderMembership(mm))
	} else {
		b.WriteString("  " + renderBar(pos.Primary) + "\n\n")
	}

	b.WriteString(fmt.Sprintf("  %s  %s\n",
		valueStyle.Render(core.FormatValue(pos.Primary, 2, m.sep)),
		labelStyle.Render(desc.Describe(pos.Primary))))

	if desc.Kind == core.KindScaled {
		b.WriteString(fmt.Sprintf("  you %s  other %s\n",
			core.FormatValue(pos.Secondary[models.SecondarySelfScale], 2, m.sep),
			core.FormatValue(pos.Secondary[models.SecondaryOtherScale], 2, m.sep)))
	}

	if len(m.feedback) > 0 {
		cues := make([]string, len(m.feedback))
		for i, e := range m.feedback {
			cues[i] = feedbackStyles[e].Render(string(e))
		}
		b.WriteString("  " + strings.Join(cues, " ") + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString("  " + errorStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString("  " + savedStyle.Render(m.status) + "\n")
	}
	b.WriteString(fmt.Sprintf("  Measurements saved: %d\n\n", m.flow.SavedCount()))
	b.WriteString(helpStyle.Render(captureHelp(desc.Kind)))
	return b.String()
}

func (m captureModel) renderMembership(mm *core.MembershipMapper) string {
	var b strings.Builder
	for _, e := range []core.MembershipEntity{core.EntitySelf, core.EntityOther} {
		name := "You  "
		if e == core.EntityOther {
			name = "Other"
		}
		marker := "  "
		if e == m.entity {
			marker = "> "
		}
		state := "outside the set"
		if mm.InSet(e) {
			state = inSetStyle.Render("in the set")
		}
		p := mm.Location(e)
		b.WriteString(fmt.Sprintf("  %s%s (%3.0f, %3.0f)  %s\n", marker, name, p.X, p.Y, state))
	}
	b.WriteString("\n")
	return b.String()
}

func renderBar(v float64) string {
	filled := int(core.ClampUnit(v)*barWidth + 0.5)
	return barFillStyle.Render(strings.Repeat("█", filled)) +
		barRestStyle.Render(strings.Repeat("░", barWidth-filled))
}

func captureHelp(kind core.ModalityKind) string {
	base := "enter: save | r: reset | f: finish | q: quit"
	switch kind {
	case core.KindScaled:
		return "←/→: overlap (shift: fine) | ↑/↓: your size | shift+↑/↓: other size | " + base
	case core.KindMembership:
		return "tab: switch entity | arrows: move | " + base
	default:
		return "←/→: adjust (shift: fine) | " + base
	}
}

var captureCmd = &cobra.Command{
	Use:   "capture <modality>",
	Short: "Capture measurements interactively",
	Long: `Start a capture session for one modality and record measurements from
the keyboard.

Arrow keys drag the value, enter saves a measurement, r resets to the
value the measurement started at, f finishes the session and q leaves it.
Leaving a session without any saved measurement discards it.

Modalities: basicIOS, advancedIOS, overlapIOS, setMembership, proximity,
identification, projection, attribution, observation.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeModalities,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Capture == nil {
			return fmt.Errorf("capture service not initialized")
		}
		modality := models.Modality(args[0])
		if !modality.Valid() {
			return fmt.Errorf("unknown modality %q", args[0])
		}

		flow, err := Capture.Start(modality)
		if err != nil {
			return err
		}

		final, err := tea.NewProgram(newCaptureModel(flow, decimalSeparator())).Run()
		if err != nil {
			// Leave the store consistent when the terminal fails.
			_, _ = flow.Exit()
			return fmt.Errorf("running capture: %w", err)
		}

		result := final.(captureModel)
		switch {
		case result.discarded:
			fmt.Println("No measurements saved; session discarded.")
		case !flow.Closed():
			_, _ = flow.Exit()
			fmt.Printf("Session %s: %d measurement(s)\n", flow.SessionID(), flow.SavedCount())
		default:
			fmt.Printf("Session %s: %d measurement(s)\n", flow.SessionID(), flow.SavedCount())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
