package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SaveOptions are the image descriptor fields collected by the save wizard.
type SaveOptions struct {
	Name string
	Desc string
}

type wizardStep int

const (
	stepName wizardStep = iota
	stepDesc
	stepConfirm
)

// saveWizard collects a name and description before a session is saved.
type saveWizard struct {
	step      wizardStep
	sessionID string
	nameInput textinput.Model
	descInput textinput.Model
}

var (
	wizardTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				MarginBottom(1)

	wizardStepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	wizardActiveStepStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	wizardLabelStyle = lipgloss.NewStyle().
				Bold(true).
				MarginBottom(1)

	wizardValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39"))

	wizardDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func newSaveWizard(sessionID string) *saveWizard {
	ni := textinput.New()
	ni.Placeholder = "My desktop"
	ni.CharLimit = 64
	ni.Width = 40
	ni.Focus()

	di := textinput.New()
	di.Placeholder = "What is installed in this image"
	di.CharLimit = 256
	di.Width = 60

	return &saveWizard{
		step:      stepName,
		sessionID: sessionID,
		nameInput: ni,
		descInput: di,
	}
}

func (w *saveWizard) Init() tea.Cmd {
	return textinput.Blink
}

// Update processes a message and returns (done, opts, cmd). done with nil
// opts means the wizard was cancelled.
func (w *saveWizard) Update(msg tea.Msg) (bool, *SaveOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyCtrlC:
			return true, nil, nil
		case tea.KeyEsc:
			return w.handleBack()
		}
	}

	switch w.step {
	case stepName:
		return w.updateName(msg)
	case stepDesc:
		return w.updateDesc(msg)
	case stepConfirm:
		return w.updateConfirm(msg)
	}
	return false, nil, nil
}

func (w *saveWizard) handleBack() (bool, *SaveOptions, tea.Cmd) {
	switch w.step {
	case stepDesc:
		w.step = stepName
		w.descInput.Blur()
		w.nameInput.Focus()
		return false, nil, textinput.Blink
	case stepConfirm:
		w.step = stepDesc
		w.descInput.Focus()
		return false, nil, textinput.Blink
	}
	return true, nil, nil
}

func (w *saveWizard) updateName(msg tea.Msg) (bool, *SaveOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		if strings.TrimSpace(w.nameInput.Value()) == "" {
			return false, nil, nil
		}
		w.step = stepDesc
		w.nameInput.Blur()
		w.descInput.Focus()
		return false, nil, textinput.Blink
	}

	var cmd tea.Cmd
	w.nameInput, cmd = w.nameInput.Update(msg)
	return false, nil, cmd
}

func (w *saveWizard) updateDesc(msg tea.Msg) (bool, *SaveOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		w.step = stepConfirm
		w.descInput.Blur()
		return false, nil, nil
	}

	var cmd tea.Cmd
	w.descInput, cmd = w.descInput.Update(msg)
	return false, nil, cmd
}

func (w *saveWizard) updateConfirm(msg tea.Msg) (bool, *SaveOptions, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return false, nil, nil
	}

	switch keyMsg.String() {
	case "enter", "y":
		return true, &SaveOptions{
			Name: strings.TrimSpace(w.nameInput.Value()),
			Desc: strings.TrimSpace(w.descInput.Value()),
		}, nil
	case "n":
		w.step = stepName
		w.nameInput.SetValue("")
		w.descInput.SetValue("")
		w.nameInput.Focus()
		return false, nil, textinput.Blink
	}
	return false, nil, nil
}

func (w *saveWizard) View() string {
	var b strings.Builder

	b.WriteString(wizardTitleStyle.Render("Save session " + w.sessionID))
	b.WriteString("\n")
	b.WriteString(w.progressBar())
	b.WriteString("\n\n")

	switch w.step {
	case stepName:
		b.WriteString(wizardLabelStyle.Render("Image name:"))
		b.WriteString("\n")
		b.WriteString(w.nameInput.View())
	case stepDesc:
		b.WriteString(wizardLabelStyle.Render("Description:"))
		b.WriteString("\n")
		b.WriteString(w.descInput.View())
	case stepConfirm:
		b.WriteString(wizardLabelStyle.Render("Confirm:"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("  Name: %s\n", wizardValueStyle.Render(strings.TrimSpace(w.nameInput.Value()))))
		b.WriteString(fmt.Sprintf("  Desc: %s\n", wizardValueStyle.Render(strings.TrimSpace(w.descInput.Value()))))
		b.WriteString("\n")
		b.WriteString(wizardDimStyle.Render("The session is stopped once the image is committed."))
	}

	b.WriteString("\n\n")
	b.WriteString(wizardDimStyle.Render("Enter to continue, Esc to go back."))
	return b.String()
}

func (w *saveWizard) progressBar() string {
	names := []string{"Name", "Description", "Confirm"}
	parts := make([]string, len(names))
	for i, name := range names {
		label := fmt.Sprintf("%d. %s", i+1, name)
		if wizardStep(i) == w.step {
			parts[i] = wizardActiveStepStyle.Render(label)
		} else {
			parts[i] = wizardStepStyle.Render(label)
		}
	}
	return strings.Join(parts, wizardDimStyle.Render(" > "))
}
