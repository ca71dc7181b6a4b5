package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/launchdeck/launchdeck/internal/app/session"
)

var helpStyle = mutedStyle.Render

// SnapshotMsg carries a session snapshot into the steps view.
type SnapshotMsg session.Snapshot

type streamClosedMsg struct{}

// waitForSnapshot blocks on the next snapshot from updates.
func waitForSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return streamClosedMsg{}
		}
		return SnapshotMsg(snap)
	}
}

// StepsModel renders the pipeline steps of a running deployment until the
// session reaches a terminal status.
type StepsModel struct {
	spinner  spinner.Model
	progress progress.Model
	updates  <-chan session.Snapshot
	snapshot session.Snapshot
	done     bool
	aborted  bool
}

// NewStepsModel starts from initial and follows updates.
func NewStepsModel(initial session.Snapshot, updates <-chan session.Snapshot) StepsModel {
	return StepsModel{
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(infoStyle)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		updates:  updates,
		snapshot: initial,
		done:     initial.Status.IsTerminal(),
	}
}

func (m StepsModel) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return tea.Batch(m.spinner.Tick, waitForSnapshot(m.updates))
}

func (m StepsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 4
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil
	case SnapshotMsg:
		m.snapshot = session.Snapshot(msg)
		if m.snapshot.Status.IsTerminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.updates)
	case streamClosedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m StepsModel) View() string {
	var sb strings.Builder
	sb.WriteString("\n")
	for _, step := range m.snapshot.Steps {
		icon := m.icon(step.Status)
		sb.WriteString(fmt.Sprintf("  %s %s\n", icon, step.Label))
		if step.Status == session.StepInProgress && len(step.Logs) > 0 {
			sb.WriteString("    " + helpStyle(step.Logs[len(step.Logs)-1]) + "\n")
		}
	}
	sb.WriteString("\n  " + m.progress.ViewAs(Progress(m.snapshot)) + "\n")
	if m.done {
		sb.WriteString("  " + statusLine(m.snapshot) + "\n")
	} else {
		sb.WriteString("  " + helpStyle("q to stop watching") + "\n")
	}
	return sb.String()
}

func (m StepsModel) icon(s session.StepStatus) string {
	switch s {
	case session.StepInProgress:
		return m.spinner.View()
	default:
		return stepIcon(s)
	}
}

// Snapshot returns the last snapshot the model saw.
func (m StepsModel) Snapshot() session.Snapshot {
	return m.snapshot
}

// Aborted reports whether the user stopped watching before the end.
func (m StepsModel) Aborted() bool {
	return m.aborted
}

// Progress is the fraction of steps that reached a terminal status.
func Progress(s session.Snapshot) float64 {
	if len(s.Steps) == 0 {
		if s.Status.IsTerminal() {
			return 1
		}
		return 0
	}
	finished := 0
	for _, step := range s.Steps {
		if step.Status.IsTerminal() {
			finished++
		}
	}
	return float64(finished) / float64(len(s.Steps))
}

func stepIcon(s session.StepStatus) string {
	switch s {
	case session.StepSuccess:
		return successStyle.Render("✓")
	case session.StepError:
		return errorStyle.Render("✗")
	case session.StepInProgress:
		return infoStyle.Render("›")
	default:
		return mutedStyle.Render("·")
	}
}

func statusLine(s session.Snapshot) string {
	switch s.Status {
	case session.StatusSuccess:
		return successStyle.Render("Deployment succeeded")
	case session.StatusError:
		msg := "Deployment failed"
		if s.Error != "" {
			msg += ": " + s.Error
		}
		return errorStyle.Render(msg)
	default:
		return infoStyle.Render("Deployment " + string(s.Status))
	}
}

// RenderSteps renders a snapshot as plain text, one step per line.
func RenderSteps(s session.Snapshot) string {
	var sb strings.Builder
	for _, step := range s.Steps {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", step.Status, step.Label))
	}
	sb.WriteString(fmt.Sprintf("status: %s", s.Status))
	if s.Error != "" {
		sb.WriteString(" (" + s.Error + ")")
	}
	sb.WriteString("\n")
	return sb.String()
}
