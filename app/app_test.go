package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sheenazien8/mysql2mongo/pipeline"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestEventsAdvancePhases(t *testing.T) {
	theme.SetTheme(theme.Plain())
	t.Cleanup(func() { theme.SetTheme(theme.DefaultTheme()) })

	m := send(t, New(nil, pipeline.Phases(pipeline.Options{Validate: true})),
		EventMsg{Phase: pipeline.StageTranslate, Done: 1, Total: 1},
		EventMsg{Phase: pipeline.StageForward, Table: "author", Done: 1, Total: 3},
		EventMsg{Phase: pipeline.StageForward, Table: "book", Done: 2, Total: 3, Err: errors.New("unmapped type")},
		EventMsg{Phase: pipeline.StageValidate, Done: 1, Total: 1},
	)

	want := []phaseState{
		{Name: pipeline.StageTranslate, Done: 1, Total: 1},
		{Name: pipeline.StageForward, Done: 3, Total: 3, Failed: 1},
		{Name: pipeline.StageReference, Done: 1, Total: 1},
		{Name: pipeline.StageValidate, Done: 1, Total: 1},
	}
	for i, p := range m.phases {
		if p != want[i] {
			t.Errorf("phase %d = %+v, want %+v", i, p, want[i])
		}
	}
	if len(m.recent) != 2 {
		t.Errorf("%d recent tasks", len(m.recent))
	}

	view := m.View()
	for _, s := range []string{"forward", "3/3", "1 failed", "failed: unmapped type", "migrating"} {
		if !strings.Contains(view, s) {
			t.Errorf("view lacks %q:\n%s", s, view)
		}
	}
}

func TestRecentIsBounded(t *testing.T) {
	m := New(nil, pipeline.Phases(pipeline.Options{}))
	for i := 0; i < maxRecent+5; i++ {
		m = send(t, m, EventMsg{Phase: pipeline.StageForward, Table: "t", Done: i + 1, Total: maxRecent + 5})
	}
	if len(m.recent) != maxRecent {
		t.Errorf("%d recent tasks", len(m.recent))
	}
}

func TestDoneAndQuit(t *testing.T) {
	report := &pipeline.Report{}
	m := send(t, New(nil, pipeline.Phases(pipeline.Options{})), tea.WindowSizeMsg{Width: 100, Height: 30}, DoneMsg{Report: report})

	if got, err := m.Report(); got != report || err != nil {
		t.Errorf("Report() = %v, %v", got, err)
	}
	if !strings.Contains(m.View(), "run succeeded") {
		t.Errorf("view = %s", m.View())
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Error("enter after the run did not quit")
	}
}

func TestQuitCancelsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(cancel, nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c did not quit")
	}
	if ctx.Err() == nil {
		t.Error("pipeline context not cancelled")
	}
	if _, err := next.(Model).Report(); !errors.Is(err, context.Canceled) {
		t.Errorf("Report() error = %v", err)
	}
}

func TestQuitAsksFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(cancel, nil)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !m.Confirm.Visible() || ctx.Err() != nil {
		t.Fatal("q cancelled without asking")
	}
	if !strings.Contains(m.View(), "Stop the migration?") {
		t.Errorf("view = %s", m.View())
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if m.Confirm.Visible() || ctx.Err() != nil {
		t.Fatal("declining cancelled the run")
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if cmd == nil || ctx.Err() == nil {
		t.Error("confirming did not cancel and quit")
	}
}
