package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestWizardStepTransitions(t *testing.T) {
	t.Run("name to desc", func(t *testing.T) {
		w := newSaveWizard("s1")
		if w.step != stepName {
			t.Fatalf("initial step = %v, want stepName", w.step)
		}

		w.nameInput.SetValue("Dev Box")
		done, opts, _ := w.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if done || opts != nil {
			t.Error("should not be done after name step")
		}
		if w.step != stepDesc {
			t.Errorf("step = %v, want stepDesc", w.step)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		w := newSaveWizard("s1")
		w.nameInput.SetValue("   ")

		done, _, _ := w.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if done {
			t.Error("should not be done")
		}
		if w.step != stepName {
			t.Error("should stay on stepName with empty input")
		}
	})

	t.Run("empty description allowed", func(t *testing.T) {
		w := newSaveWizard("s1")
		w.step = stepDesc

		w.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if w.step != stepConfirm {
			t.Errorf("step = %v, want stepConfirm", w.step)
		}
	})

	t.Run("esc goes back", func(t *testing.T) {
		w := newSaveWizard("s1")
		w.step = stepConfirm

		done, _, _ := w.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if done {
			t.Error("esc on confirm should go back, not cancel")
		}
		if w.step != stepDesc {
			t.Errorf("step = %v, want stepDesc", w.step)
		}

		w.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if w.step != stepName {
			t.Errorf("step = %v, want stepName", w.step)
		}
	})
}

func TestWizardConfirm(t *testing.T) {
	t.Run("enter completes", func(t *testing.T) {
		w := newSaveWizard("s1")
		w.nameInput.SetValue("  Dev Box ")
		w.descInput.SetValue("Go toolchain")
		w.step = stepConfirm

		done, opts, _ := w.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if !done || opts == nil {
			t.Fatal("enter on confirm should complete the wizard")
		}
		if opts.Name != "Dev Box" || opts.Desc != "Go toolchain" {
			t.Errorf("opts = %+v", *opts)
		}
	})

	t.Run("n restarts", func(t *testing.T) {
		w := newSaveWizard("s1")
		w.nameInput.SetValue("Dev Box")
		w.step = stepConfirm

		done, _, _ := w.Update(key('n'))
		if done {
			t.Error("n should restart, not finish")
		}
		if w.step != stepName || w.nameInput.Value() != "" {
			t.Error("wizard should be reset to an empty name step")
		}
	})
}

func TestWizardCancel(t *testing.T) {
	t.Run("esc on first step", func(t *testing.T) {
		w := newSaveWizard("s1")
		done, opts, _ := w.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if !done || opts != nil {
			t.Error("esc on the first step should cancel")
		}
	})

	t.Run("ctrl+c anywhere", func(t *testing.T) {
		w := newSaveWizard("s1")
		w.step = stepDesc
		done, opts, _ := w.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		if !done || opts != nil {
			t.Error("ctrl+c should cancel")
		}
	})
}

func TestWizardView(t *testing.T) {
	w := newSaveWizard("s1")
	if view := w.View(); !strings.Contains(view, "Image name:") || !strings.Contains(view, "1. Name") {
		t.Errorf("name step view = %q", view)
	}

	w.nameInput.SetValue("Dev Box")
	w.step = stepConfirm
	view := w.View()
	if !strings.Contains(view, "Dev Box") {
		t.Error("confirm view should show the name")
	}
	if !strings.Contains(view, "stopped") {
		t.Error("confirm view should warn that the session stops")
	}
}
