// Package report renders migration runs for the terminal and as JSON. A
// Summary can come from a finished pipeline run or from the journal.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sheenazien8/mysql2mongo/pipeline"
	"github.com/sheenazien8/mysql2mongo/storage"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
	"github.com/sheenazien8/mysql2mongo/validate"
)

// DiffLegend explains what the data diff cannot see.
const DiffLegend = "Data diffs group rows by every column and report groups holding exactly one row. " +
	"Rows that occur more than once on a side are not compared."

type Stage struct {
	Table    string        `json:"table"`
	Stage    string        `json:"stage"`
	Detail   string        `json:"detail,omitempty"`
	Rows     int64         `json:"rows"`
	Attempts int64         `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

type Diff struct {
	Table      string `json:"table"`
	SchemaRows int64  `json:"schema_rows"`
	DataRows   int64  `json:"data_rows"`
	Error      string `json:"error,omitempty"`
	// Record is the full validating_log entry when it is known.
	Record *validate.LogRecord `json:"record,omitempty"`
}

func (d Diff) status() string {
	switch {
	case d.Error != "":
		return "failed"
	case d.SchemaRows > 0 || d.DataRows > 0:
		return "partial"
	}
	return "ok"
}

type Phase struct {
	Phase    string        `json:"phase"`
	Duration time.Duration `json:"duration_ns"`
}

type Summary struct {
	RunID    string        `json:"run_id,omitempty"`
	Source   string        `json:"source"`
	Target   string        `json:"target"`
	Status   string        `json:"status"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
	Phases   []Phase       `json:"phases,omitempty"`
	Stages   []Stage       `json:"stages"`
	Diffs    []Diff        `json:"diffs,omitempty"`
}

// FromPipeline summarizes a finished run.
func FromPipeline(r *pipeline.Report) Summary {
	s := Summary{
		Source:   r.Source,
		Target:   r.Target,
		Status:   r.Status(),
		Started:  r.Started,
		Duration: r.Duration,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	for _, ph := range r.Phases {
		s.Phases = append(s.Phases, Phase{Phase: ph.Phase, Duration: ph.Duration})
	}
	for _, tr := range r.Tables {
		for _, st := range tr.Stages {
			out := Stage{
				Table:    tr.Table,
				Stage:    st.Stage,
				Detail:   st.Detail,
				Rows:     int64(st.Rows),
				Attempts: int64(st.Attempts),
				Duration: st.Duration,
			}
			if st.Err != nil {
				out.Error = st.Err.Error()
			}
			s.Stages = append(s.Stages, out)
		}
		if tr.Diff != nil {
			rec := *tr.Diff
			s.Diffs = append(s.Diffs, Diff{
				Table:      rec.Table,
				SchemaRows: int64(len(rec.Schema)),
				DataRows:   int64(len(rec.Data)),
				Error:      rec.Error,
				Record:     &rec,
			})
		}
	}
	return s
}

// Outcomes turns s into journal rows for run id.
func (s Summary) Outcomes(id string) []storage.TableOutcome {
	out := make([]storage.TableOutcome, 0, len(s.Stages))
	for _, st := range s.Stages {
		out = append(out, storage.TableOutcome{
			RunID:    id,
			Table:    st.Table,
			Stage:    st.Stage,
			Detail:   st.Detail,
			Rows:     st.Rows,
			Attempts: st.Attempts,
			Duration: st.Duration.Milliseconds(),
			Error:    st.Error,
		})
	}
	return out
}

// DiffSummaries turns the diffs of s into journal rows for run id.
func (s Summary) DiffSummaries(id string) ([]storage.DiffSummary, error) {
	out := make([]storage.DiffSummary, 0, len(s.Diffs))
	for _, d := range s.Diffs {
		var detail string
		if d.Record != nil {
			b, err := json.Marshal(d.Record)
			if err != nil {
				return nil, fmt.Errorf("failed to encode diff of %s: %w", d.Table, err)
			}
			detail = string(b)
		}
		out = append(out, storage.DiffSummary{
			RunID:      id,
			Table:      d.Table,
			SchemaRows: d.SchemaRows,
			DataRows:   d.DataRows,
			Error:      d.Error,
			Detail:     detail,
		})
	}
	return out, nil
}

// FromJournal rebuilds the summary of a stored run.
func FromJournal(run *storage.Run, outcomes []storage.TableOutcome, diffs []storage.DiffSummary) (Summary, error) {
	s := Summary{
		RunID:   run.ID,
		Source:  run.Source,
		Target:  run.Target,
		Status:  run.Status,
		Started: run.StartedAt,
	}
	if run.FinishedAt != nil {
		s.Duration = run.FinishedAt.Sub(run.StartedAt)
	}
	for _, o := range outcomes {
		s.Stages = append(s.Stages, Stage{
			Table:    o.Table,
			Stage:    o.Stage,
			Detail:   o.Detail,
			Rows:     o.Rows,
			Attempts: o.Attempts,
			Duration: time.Duration(o.Duration) * time.Millisecond,
			Error:    o.Error,
		})
	}

	var errs []error
	for _, d := range diffs {
		out := Diff{Table: d.Table, SchemaRows: d.SchemaRows, DataRows: d.DataRows, Error: d.Error}
		if d.Detail != "" {
			var rec validate.LogRecord
			if err := json.Unmarshal([]byte(d.Detail), &rec); err != nil {
				errs = append(errs, fmt.Errorf("failed to decode diff of %s: %w", d.Table, err))
			} else {
				out.Record = &rec
			}
		}
		s.Diffs = append(s.Diffs, out)
	}
	return s, errors.Join(errs...)
}

// JSON encodes s with indentation.
func JSON(s Summary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Render draws s with the current theme.
func Render(s Summary) string {
	t := theme.Current
	var b strings.Builder

	title := "Migration " + t.Status(s.Status).Render(strings.ToUpper(s.Status))
	if s.RunID != "" {
		title += t.Muted.Render("  run " + s.RunID)
	}
	b.WriteString(t.Title.Render("mysql2mongo") + "  " + title + "\n")
	fmt.Fprintf(&b, "%s -> %s, started %s, took %s\n",
		s.Source, s.Target, s.Started.Local().Format(time.DateTime), duration(s.Duration))
	if s.Error != "" {
		b.WriteString(t.Failed.Render("stopped: "+s.Error) + "\n")
	}

	if len(s.Phases) > 0 {
		var parts []string
		for _, ph := range s.Phases {
			parts = append(parts, ph.Phase+" "+duration(ph.Duration))
		}
		b.WriteString(t.Muted.Render("phases: "+strings.Join(parts, ", ")) + "\n")
	}

	b.WriteString("\n")
	rows := make([][]string, 0, len(s.Stages))
	for _, st := range s.Stages {
		status := "ok"
		if st.Error != "" {
			status = "failed"
		} else if strings.HasPrefix(st.Detail, "skipped") {
			status = "skipped"
		}
		attempts := ""
		if st.Attempts > 1 {
			attempts = humanize.Comma(st.Attempts)
		}
		rows = append(rows, []string{
			st.Table, st.Stage, st.Detail, humanize.Comma(st.Rows), attempts,
			duration(st.Duration), status, st.Error,
		})
	}
	b.WriteString(table(t, []string{"TABLE", "STAGE", "DETAIL", "ROWS", "TRIES", "TIME", "STATUS", "ERROR"}, rows, 6))

	if len(s.Diffs) > 0 {
		b.WriteString("\n")
		rows = rows[:0]
		for _, d := range s.Diffs {
			rows = append(rows, []string{
				d.Table, humanize.Comma(d.SchemaRows), humanize.Comma(d.DataRows), d.status(), d.Error,
			})
		}
		b.WriteString(table(t, []string{"TABLE", "SCHEMA DIFFS", "DATA DIFFS", "STATUS", "ERROR"}, rows, 3))
		b.WriteString("\n" + t.Muted.Render(DiffLegend) + "\n")
	}
	return b.String()
}

// Runs lists journal runs, newest first, relative to now.
func Runs(runs []storage.Run, now time.Time) string {
	t := theme.Current
	if len(runs) == 0 {
		return t.Muted.Render("no runs recorded") + "\n"
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		took := "-"
		if r.FinishedAt != nil {
			took = duration(r.FinishedAt.Sub(r.StartedAt))
		}
		rows = append(rows, []string{
			r.ID, r.Source, r.Target, r.Status,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"), took,
		})
	}
	return table(t, []string{"RUN", "SOURCE", "TARGET", "STATUS", "STARTED", "TOOK"}, rows, 3)
}

func duration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

// table lays rows out in padded columns. statusCol is colored by its value.
func table(t *theme.Theme, headers []string, rows [][]string, statusCol int) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	line := func(cells []string, style func(i int, cell string) lipgloss.Style) {
		for i, cell := range cells {
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == len(cells)-1 {
				pad = ""
			}
			b.WriteString(style(i, cell).Render(cell) + pad)
			if i < len(cells)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}

	line(headers, func(int, string) lipgloss.Style { return t.TableHeader })
	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	b.WriteString(t.TableBorder.Render(strings.Repeat("─", total)) + "\n")
	for _, r := range rows {
		line(r, func(i int, cell string) lipgloss.Style {
			if i == statusCol {
				return t.Status(cell)
			}
			return t.TableCell
		})
	}
	return b.String()
}
