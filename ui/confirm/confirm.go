// Package confirm is a centered yes/no dialog.
package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

// Result represents the dialog result
type Result int

const (
	ResultNone Result = iota
	ResultYes
	ResultNo
)

type Model struct {
	Title   string
	Message string

	visible bool
	yes     bool // highlighted button
	result  Result

	width  int
	height int
}

// New creates a hidden dialog. No is highlighted when it opens.
func New(title, message string) Model {
	return Model{Title: title, Message: message}
}

// Show opens the dialog and clears the previous result
func (m *Model) Show() {
	logger.Debug("Confirm dialog opened", map[string]any{"title": m.Title})
	m.visible = true
	m.yes = false
	m.result = ResultNone
}

func (m *Model) Hide() { m.visible = false }

func (m Model) Visible() bool { return m.visible }

func (m Model) Result() Result { return m.result }

// Confirmed reports whether the dialog was closed with yes
func (m Model) Confirmed() bool { return m.result == ResultYes }

// SetSize sets the terminal size for centering
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !m.visible || !ok {
		return m, nil
	}

	switch key.String() {
	case "left", "h", "tab", "right", "l", "shift+tab":
		m.yes = !m.yes
	case "y", "Y":
		m.close(ResultYes)
	case "n", "N", "esc":
		m.close(ResultNo)
	case "enter":
		if m.yes {
			m.close(ResultYes)
		} else {
			m.close(ResultNo)
		}
	}
	return m, nil
}

func (m *Model) close(r Result) {
	m.result = r
	m.visible = false
	logger.Debug("Confirm dialog closed", map[string]any{"title": m.Title, "confirmed": r == ResultYes})
}

// View renders the dialog centered in the terminal
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	t := theme.Current

	active := lipgloss.NewStyle().
		Foreground(t.Colors.Foreground).
		Background(t.Colors.Primary).
		Padding(0, 2).
		Bold(true)
	inactive := lipgloss.NewStyle().
		Foreground(t.Colors.ForegroundDim).
		Padding(0, 2)

	yes, no := inactive.Render("Yes"), active.Render("No")
	if m.yes {
		yes, no = active.Render("Yes"), inactive.Render("No")
	}

	body := lipgloss.JoinVertical(lipgloss.Center,
		t.Title.Render(m.Title),
		lipgloss.NewStyle().Padding(1, 0).Render(m.Message),
		lipgloss.JoinHorizontal(lipgloss.Center, yes, "   ", no),
		t.Muted.Copy().PaddingTop(1).Render("←→ select · enter confirm · y/n"),
	)
	dialog := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(t.Colors.Primary).
		Padding(1, 3).
		Render(body)

	if m.width == 0 || m.height == 0 {
		return dialog
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}
