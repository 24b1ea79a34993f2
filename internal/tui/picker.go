package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/desklab/internal/health"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionOpen
	ActionLaunch
	ActionDestroy
	ActionReboot
	ActionSave
	ActionQuit
)

// PickerResult holds the result of the picker. Session is set for session
// actions, Image for ActionLaunch and Save for ActionSave.
type PickerResult struct {
	Action  Action
	Session *lifecycle.SessionInfo
	Image   *lifecycle.ImageEntry
	Save    *SaveOptions
}

// sessionItem implements list.Item for a running session
type sessionItem struct {
	info lifecycle.SessionInfo
}

func (i sessionItem) Title() string {
	return i.info.ID
}

func (i sessionItem) Description() string {
	return fmt.Sprintf("%s port %d | %s | %s",
		statusIcon(i.info.Status),
		i.info.Port,
		i.info.Uptime,
		truncate(i.info.Image, 30),
	)
}

func (i sessionItem) FilterValue() string {
	return i.info.ID
}

// imageItem implements list.Item for a launchable image
type imageItem struct {
	entry lifecycle.ImageEntry
}

func (i imageItem) Title() string {
	return i.entry.Metadata.Name
}

func (i imageItem) Description() string {
	desc := i.entry.Metadata.Desc
	if desc == "" {
		desc = "-"
	}
	return fmt.Sprintf("%s | %s", i.entry.Ref, truncate(desc, 40))
}

func (i imageItem) FilterValue() string {
	return i.entry.Metadata.Name + " " + i.entry.Ref
}

func statusIcon(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return "✓"
	case health.StatusUnhealthy:
		return "⚠"
	case health.StatusMissing:
		return "✗"
	default:
		return "●"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// Model is the bubbletea model for the session picker
type Model struct {
	list     list.Model
	wizard   *saveWizard
	target   *lifecycle.SessionInfo
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker creates a picker over a user's sessions and launchable images.
func NewPicker(sessions []lifecycle.SessionInfo, base, mine []lifecycle.ImageEntry) Model {
	items := buildGroupedItems(sessions, base, mine)

	l := list.New(items, newGroupedDelegate(), 80, 20)
	l.Title = fmt.Sprintf("desklab - %d sessions, %d images", len(sessions), len(items)-headerCount(items)-len(sessions))
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	skipHeaders(&l, 1)

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.wizard != nil {
		return m.updateWizard(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter":
			switch item := m.list.SelectedItem().(type) {
			case sessionItem:
				return m.finish(PickerResult{Action: ActionOpen, Session: &item.info})
			case imageItem:
				return m.finish(PickerResult{Action: ActionLaunch, Image: &item.entry})
			}
			return m, nil

		case "d":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				return m.finish(PickerResult{Action: ActionDestroy, Session: &item.info})
			}
			return m, nil

		case "r":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				return m.finish(PickerResult{Action: ActionReboot, Session: &item.info})
			}
			return m, nil

		case "s":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				info := item.info
				m.target = &info
				m.wizard = newSaveWizard(info.ID)
				return m, m.wizard.Init()
			}
			return m, nil

		case "q", "esc":
			return m.finish(PickerResult{Action: ActionQuit})
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	if key, ok := msg.(tea.KeyMsg); ok && isHeaderSelected(&m.list) {
		skipHeaders(&m.list, navigationDirection(key))
	}
	return m, cmd
}

func (m Model) updateWizard(msg tea.Msg) (tea.Model, tea.Cmd) {
	done, opts, cmd := m.wizard.Update(msg)
	if !done {
		return m, cmd
	}
	if opts == nil {
		m.wizard = nil
		m.target = nil
		return m, nil
	}
	return m.finish(PickerResult{Action: ActionSave, Session: m.target, Save: opts})
}

func (m Model) finish(result PickerResult) (tea.Model, tea.Cmd) {
	m.result = result
	m.quitting = true
	return m, tea.Quit
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.wizard != nil {
		return m.wizard.View()
	}

	help := helpStyle.Render("[enter] Open/Launch  [d] Destroy  [r] Reboot  [s] Save  [/] Filter  [q] Quit")
	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive session picker
func RunPicker(sessions []lifecycle.SessionInfo, base, mine []lifecycle.ImageEntry) (PickerResult, error) {
	if len(sessions) == 0 && len(base) == 0 && len(mine) == 0 {
		return PickerResult{Action: ActionNone}, nil
	}

	p := tea.NewProgram(NewPicker(sessions, base, mine), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker renders a non-interactive session listing
func SimplePicker(sessions []lifecycle.SessionInfo) string {
	var sb strings.Builder

	sb.WriteString("desklab - Sessions\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(sessions) == 0 {
		sb.WriteString("No sessions found.\n")
		sb.WriteString("Start one with: desklab launch <image>\n")
		return sb.String()
	}

	for i, s := range sessions {
		sb.WriteString(fmt.Sprintf("%d. %s %s (%s)\n", i+1, statusIcon(s.Status), s.ID, s.Image))
		sb.WriteString(fmt.Sprintf("   Port: %d | Token: %s | Up: %s\n\n", s.Port, s.Token, s.Uptime))
	}

	return sb.String()
}
