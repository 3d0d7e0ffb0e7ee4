package pipeline

import (
	"sync"
	"time"

	"github.com/sheenazien8/mysql2mongo/validate"
)

// Stage names used in table reports.
const (
	StageTranslate = "translate"
	StageForward   = "forward"
	StageReference = "reference"
	StageValidate  = "validate"
)

// StageOutcome is the result of one stage for one table.
type StageOutcome struct {
	Stage    string
	Detail   string
	Rows     int
	Attempts int
	Duration time.Duration
	Err      error
}

// TableReport collects every stage outcome of one table, in the order the
// stages ran.
type TableReport struct {
	Table  string
	Stages []StageOutcome
	Diff   *validate.LogRecord
}

// Failed reports whether any stage of the table failed.
func (t *TableReport) Failed() bool {
	for _, s := range t.Stages {
		if s.Err != nil {
			return true
		}
	}
	return t.Diff != nil && t.Diff.Error != ""
}

// FailedAt reports whether the named stage failed.
func (t *TableReport) FailedAt(stage string) bool {
	for _, s := range t.Stages {
		if s.Stage == stage && s.Err != nil {
			return true
		}
	}
	return false
}

type PhaseTiming struct {
	Phase    string
	Duration time.Duration
}

// Report is the outcome of a run. Every data table of the schema has an
// entry, whatever happened to it.
type Report struct {
	Source   string
	Target   string
	Started  time.Time
	Duration time.Duration
	Tables   []*TableReport
	Phases   []PhaseTiming
	// Err is set when the run stopped before its last phase.
	Err error

	mu      sync.Mutex
	byTable map[string]*TableReport
}

func newReport(source, target string, tables []string) *Report {
	r := &Report{
		Source:  source,
		Target:  target,
		Started: time.Now(),
		byTable: make(map[string]*TableReport, len(tables)),
	}
	for _, name := range tables {
		tr := &TableReport{Table: name}
		r.Tables = append(r.Tables, tr)
		r.byTable[name] = tr
	}
	return r
}

func (r *Report) record(table string, o StageOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.byTable[table]
	if !ok {
		tr = &TableReport{Table: table}
		r.Tables = append(r.Tables, tr)
		r.byTable[table] = tr
	}
	tr.Stages = append(tr.Stages, o)
}

func (r *Report) recordDiff(rec validate.LogRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tr, ok := r.byTable[rec.Table]; ok {
		tr.Diff = &rec
	}
}

func (r *Report) phase(name string, start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phases = append(r.Phases, PhaseTiming{Phase: name, Duration: time.Since(start)})
}

// Table returns the report of one table.
func (r *Report) Table(name string) (*TableReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.byTable[name]
	return tr, ok
}

// FailedTables lists the tables with at least one failed stage.
func (r *Report) FailedTables() []string {
	var names []string
	for _, t := range r.Tables {
		if t.Failed() {
			names = append(names, t.Table)
		}
	}
	return names
}

// Status is failed when the run stopped early, partial when some table
// failed and succeeded otherwise.
func (r *Report) Status() string {
	switch {
	case r.Err != nil:
		return "failed"
	case len(r.FailedTables()) > 0:
		return "partial"
	}
	return "succeeded"
}
