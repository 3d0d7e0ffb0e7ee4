package app

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/pipeline"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case EventMsg:
		m = m.apply(pipeline.Event(msg))
		return m, nil

	case DoneMsg:
		m.report = msg.Report
		m.err = msg.Err
		m.done = true
		m.Confirm.Hide()
		m = m.updateFooter()
		logger.Debug("Progress view finished", map[string]any{"error": errString(msg.Err)})
		return m, nil

	case tea.WindowSizeMsg:
		m.TerminalWidth = msg.Width
		m.TerminalHeight = msg.Height
		m.Progress.Width = min(max(msg.Width-30, 10), 60)
		m.Confirm.SetSize(msg.Width, msg.Height)
		m = m.updateStyles()
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if !m.done {
				m = m.stop()
			}
			return m, tea.Quit
		}
		if m.Confirm.Visible() {
			m.Confirm, _ = m.Confirm.Update(msg)
			if m.Confirm.Confirmed() {
				return m.stop(), tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "esc":
			if !m.done {
				m.Confirm.Show()
				return m, nil
			}
			return m, tea.Quit
		case "enter":
			if m.done {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// stop cancels the pipeline before it finished.
func (m Model) stop() Model {
	logger.Warn("Run cancelled from the progress view", nil)
	if m.cancel != nil {
		m.cancel()
	}
	m.err = context.Canceled
	return m
}

// apply records ev against its phase. Phases before it are complete.
func (m Model) apply(ev pipeline.Event) Model {
	phases := make([]phaseState, len(m.phases))
	copy(phases, m.phases)

	reached := false
	for i := len(phases) - 1; i >= 0; i-- {
		p := &phases[i]
		switch {
		case p.Name == ev.Phase:
			reached = true
			p.Done = max(p.Done, ev.Done)
			p.Total = ev.Total
			if ev.Err != nil {
				p.Failed++
			}
		case reached && p.Done < p.Total:
			p.Done = p.Total
		case reached && p.Total == 0:
			p.Done, p.Total = 1, 1
		}
	}
	m.phases = phases

	if ev.Table != "" {
		m.recent = append(m.recent, ev)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}
	}
	return m
}

// updateStyles refreshes the header and footer after a resize
func (m Model) updateStyles() Model {
	t := theme.Current
	m.HeaderStyle = t.Header.Width(m.TerminalWidth).Render("mysql2mongo [" + t.Name + "]")
	return m.updateFooter()
}

// updateFooter refreshes just the footer with current help text
func (m Model) updateFooter() Model {
	t := theme.Current
	m.FooterStyle = t.Footer.Width(m.TerminalWidth).Render(m.getFooterHelp())
	return m
}

func (m Model) getFooterHelp() string {
	if m.done {
		return "Enter/q: Exit and print the report"
	}
	return "q: Cancel run"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
