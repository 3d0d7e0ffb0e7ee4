// Package app is the terminal progress view of a migration run.
package app

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sheenazien8/mysql2mongo/pipeline"
	"github.com/sheenazien8/mysql2mongo/ui/confirm"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

// EventMsg carries one pipeline event into the program.
type EventMsg pipeline.Event

// DoneMsg ends the run.
type DoneMsg struct {
	Report *pipeline.Report
	Err    error
}

// phaseState is the progress of one pipeline phase.
type phaseState struct {
	Name   string
	Done   int
	Total  int
	Failed int
}

func (p phaseState) percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// maxRecent bounds the finished task list.
const maxRecent = 8

type Model struct {
	Spinner  spinner.Model
	Progress progress.Model
	Confirm  confirm.Model

	phases []phaseState
	recent []pipeline.Event

	report *pipeline.Report
	err    error
	done   bool

	// cancel stops the pipeline when the user quits early.
	cancel context.CancelFunc

	TerminalWidth  int
	TerminalHeight int

	HeaderStyle string
	FooterStyle string
}

// New builds the view for a run of the named phases.
func New(cancel context.CancelFunc, names []string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = s.Style.Foreground(theme.Current.Colors.Primary)

	phases := make([]phaseState, len(names))
	for i, n := range names {
		phases[i] = phaseState{Name: n}
	}

	return Model{
		Spinner:  s,
		Progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		Confirm:  confirm.New("Cancel run", "Stop the migration? Tables already copied stay in MongoDB."),
		phases:   phases,
		cancel:   cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Report returns the finished run, if any.
func (m Model) Report() (*pipeline.Report, error) {
	return m.report, m.err
}

// Run shows the view while a pipeline runs and returns its result. The
// progress option is installed by Run.
func Run(ctx context.Context, opener pipeline.Opener, doc []byte, opts pipeline.Options) (*pipeline.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(New(cancel, pipeline.Phases(opts)), tea.WithAltScreen())
	opts.Progress = func(ev pipeline.Event) { prog.Send(EventMsg(ev)) }
	p := pipeline.New(opener, doc, opts)

	go func() {
		report, err := p.Run(ctx)
		prog.Send(DoneMsg{Report: report, Err: err})
	}()

	final, err := prog.Run()
	if err != nil {
		return nil, err
	}
	return final.(Model).Report()
}
