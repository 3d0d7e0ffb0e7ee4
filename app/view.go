package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

// View renders the progress of every phase and the latest finished tasks
func (m Model) View() string {
	if m.Confirm.Visible() {
		return m.Confirm.View()
	}
	t := theme.Current

	var b strings.Builder
	for _, p := range m.phases {
		label := fmt.Sprintf("%-10s", p.Name)
		count := t.Muted.Render(fmt.Sprintf(" %d/%d", p.Done, p.Total))
		if p.Failed > 0 {
			count += t.Failed.Render(fmt.Sprintf(" %d failed", p.Failed))
		}
		b.WriteString(label + " " + m.Progress.ViewAs(p.percent()) + count + "\n")
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, ev := range m.recent {
			status := t.Succeeded.Render("ok")
			if ev.Err != nil {
				status = t.Failed.Render("failed: " + ev.Err.Error())
			}
			b.WriteString(fmt.Sprintf("  %-10s %-24s %s\n", ev.Phase, ev.Table, status))
		}
	}

	b.WriteString("\n")
	switch {
	case !m.done:
		b.WriteString(m.Spinner.View() + " migrating")
	case m.err != nil:
		b.WriteString(t.Failed.Render("run stopped: " + m.err.Error()))
	case m.report != nil:
		b.WriteString(t.Status(m.report.Status()).Render("run " + m.report.Status()))
	}

	content := t.Box.Width(max(m.TerminalWidth-2, 0)).Render(b.String())
	if m.TerminalWidth == 0 {
		content = b.String()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.HeaderStyle, content, m.FooterStyle)
}
