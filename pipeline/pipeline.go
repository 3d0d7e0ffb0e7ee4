// Package pipeline runs a whole migration: schema translation, the forward
// copy of every table, reference conversion and the optional validation
// round trip.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/migrate"
	"github.com/sheenazien8/mysql2mongo/reference"
	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/translate"
	"github.com/sheenazien8/mysql2mongo/validate"
)

// Opener hands out store handles. The pipeline opens fresh handles for each
// phase and closes them when the phase ends.
type Opener interface {
	OpenRelational(ctx context.Context) (drivers.RelationalStore, error)
	OpenDocument(ctx context.Context) (drivers.DocumentStore, error)
}

type Options struct {
	// Workers bounds concurrent table tasks. Values below 1 mean 1.
	Workers int
	// Retries is the number of extra attempts for a task failing with
	// drivers.ErrStoreUnavailable.
	Retries   int
	BatchSize int
	Validate  bool
	// Phases restricts the run to the named stages, kept in pipeline order.
	// Empty runs translation, forward and references, plus validation when
	// Validate is set.
	Phases []string
	// DropTarget drops the MongoDB database before translation.
	DropTarget bool
	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration
	// Backoff builds the retry policy. Nil uses exponential backoff.
	Backoff func() backoff.BackOff
	// Progress receives one event per finished task. It must not block.
	Progress func(Event)
}

// Event reports the end of one task.
type Event struct {
	Phase string
	Table string
	Done  int
	Total int
	Err   error
}

type phase struct {
	name string
	run  func(context.Context, *schema.RelationalSchema, *Report) error
}

type Pipeline struct {
	opener Opener
	doc    []byte
	opts   Options
}

// New prepares a run of the schema crawler document doc.
func New(opener Opener, doc []byte, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	return &Pipeline{opener: opener, doc: doc, opts: opts}
}

// Run executes every phase. A malformed schema or an unreachable store at the
// start of a phase stops the run; table level failures are only recorded.
// The report is returned in both cases.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	s, err := schema.Parse(p.doc)
	if err != nil {
		return &Report{Err: err, Started: time.Now()}, err
	}

	var names []string
	for _, t := range s.DataTables() {
		names = append(names, t.Name)
	}
	report := newReport(s.Database, "", names)

	for _, ph := range p.phases() {
		start := time.Now()
		err := ph.run(ctx, s, report)
		report.phase(ph.name, start)
		if err != nil {
			report.Err = fmt.Errorf("%s phase: %w", ph.name, err)
			break
		}
	}
	report.Duration = time.Since(report.Started)

	logger.Info("Migration finished", map[string]any{
		"source":   report.Source,
		"target":   report.Target,
		"status":   report.Status(),
		"failed":   report.FailedTables(),
		"duration": report.Duration.String(),
	})
	return report, report.Err
}

func (p *Pipeline) phases() []phase {
	all := []phase{
		{StageTranslate, p.translate},
		{StageForward, p.forward},
		{StageReference, p.references},
		{StageValidate, p.validate},
	}
	if len(p.opts.Phases) == 0 {
		if p.opts.Validate {
			return all
		}
		return all[:3]
	}

	var out []phase
	for _, ph := range all {
		if slices.Contains(p.opts.Phases, ph.name) {
			out = append(out, ph)
		}
	}
	return out
}

// Phases lists the stage names a pipeline built with opts runs.
func Phases(opts Options) []string {
	var names []string
	for _, ph := range (&Pipeline{opts: opts}).phases() {
		names = append(names, ph.name)
	}
	return names
}

func (p *Pipeline) notify(ev Event) {
	if p.opts.Progress != nil {
		p.opts.Progress(ev)
	}
}

func (p *Pipeline) openBoth(ctx context.Context) (drivers.RelationalStore, drivers.DocumentStore, func(), error) {
	rel, err := p.opener.OpenRelational(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open source: %w", err)
	}
	docs, err := p.opener.OpenDocument(ctx)
	if err != nil {
		_ = rel.Close()
		return nil, nil, nil, fmt.Errorf("failed to open target: %w", err)
	}
	release := func() {
		if err := rel.Close(); err != nil {
			logger.Warn("Failed to close source", map[string]any{"error": err.Error()})
		}
		if err := docs.Close(context.Background()); err != nil {
			logger.Warn("Failed to close target", map[string]any{"error": err.Error()})
		}
	}
	return rel, docs, release, nil
}

// translate is the barrier every later phase waits on.
func (p *Pipeline) translate(ctx context.Context, s *schema.RelationalSchema, report *Report) error {
	rel, docs, release, err := p.openBoth(ctx)
	if err != nil {
		return err
	}
	defer release()
	report.Target = docs.Database()

	if p.opts.DropTarget {
		if err := docs.DropDatabase(ctx); err != nil {
			return fmt.Errorf("failed to drop target database: %w", err)
		}
		logger.Info("Target database dropped", map[string]any{"database": docs.Database()})
	}

	tr := translate.New(docs, rel)
	if err := tr.LoadSchema(ctx, s); err != nil {
		return err
	}

	var outcomes []translate.Outcome
	for _, step := range []func(context.Context) ([]translate.Outcome, error){
		tr.TranslateValidators,
		tr.TranslateIndexes,
		tr.DropViews,
	} {
		out, err := step(ctx)
		outcomes = append(outcomes, out...)
		if err != nil {
			return err
		}
	}

	for _, o := range outcomes {
		if _, ok := report.Table(o.Collection); !ok {
			continue
		}
		report.record(o.Collection, StageOutcome{
			Stage:  StageTranslate,
			Detail: describe(o),
			Err:    o.Err,
		})
	}
	p.notify(Event{Phase: StageTranslate, Done: 1, Total: 1})
	return nil
}

func describe(o translate.Outcome) string {
	if o.Detail == "" {
		return o.Step
	}
	return o.Step + ": " + o.Detail
}

// retry runs op until it succeeds, fails permanently or runs out of
// attempts. It returns the number of attempts made.
func (p *Pipeline) retry(ctx context.Context, op func() error) (int, error) {
	attempts := 0
	b := backoff.WithContext(backoff.WithMaxRetries(p.opts.Backoff(), uint64(max(p.opts.Retries, 0))), ctx)
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && !errors.Is(err, drivers.ErrStoreUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	return attempts, err
}

func (p *Pipeline) forward(ctx context.Context, s *schema.RelationalSchema, report *Report) error {
	rel, docs, release, err := p.openBoth(ctx)
	if err != nil {
		return err
	}
	defer release()

	m := migrate.New(rel, docs, s.Database)
	m.BatchSize = p.opts.BatchSize

	tables := s.DataTables()
	progress := &counter{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, tbl := range tables {
		g.Go(func() error {
			var res migrate.Result
			attempts, err := p.retry(gctx, func() error {
				var err error
				res, err = m.MigrateTable(gctx, tbl)
				if res.Inserted > 0 && err != nil {
					// Documents already written would be duplicated.
					return backoff.Permanent(err)
				}
				return err
			})
			if err != nil {
				logger.Error("Table migration failed", map[string]any{
					"table":    tbl.Name,
					"stage":    StageForward,
					"attempts": attempts,
					"error":    err.Error(),
				})
			}
			report.record(tbl.Name, StageOutcome{
				Stage:    StageForward,
				Rows:     res.Inserted,
				Attempts: attempts,
				Duration: res.Duration,
				Err:      err,
			})
			p.notify(Event{Phase: StageForward, Table: tbl.Name, Done: progress.inc(), Total: len(tables), Err: err})
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) references(ctx context.Context, s *schema.RelationalSchema, report *Report) error {
	rels, err := reference.Relations(s)
	if err != nil {
		return err
	}

	var ready []reference.Relation
	for _, r := range rels {
		if p.forwardFailed(report, r.ForeignTable) || p.forwardFailed(report, r.PrimaryTable) {
			report.record(r.ForeignTable, StageOutcome{
				Stage:  StageReference,
				Detail: "skipped " + r.String() + ": a side was not migrated",
			})
			continue
		}
		ready = append(ready, r)
	}
	if len(ready) == 0 {
		return nil
	}

	docs, err := p.opener.OpenDocument(ctx)
	if err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	defer func() {
		if err := docs.Close(context.Background()); err != nil {
			logger.Warn("Failed to close target", map[string]any{"error": err.Error()})
		}
	}()

	conv := reference.NewConverter(docs)
	progress := &counter{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, r := range ready {
		g.Go(func() error {
			var res reference.Result
			attempts, err := p.retry(gctx, func() error {
				var err error
				res, err = conv.Convert(gctx, r)
				return err
			})
			if err != nil {
				logger.Error("Reference conversion failed", map[string]any{
					"table":    r.ForeignTable,
					"relation": r.String(),
					"stage":    StageReference,
					"error":    err.Error(),
				})
			}
			report.record(r.ForeignTable, StageOutcome{
				Stage:    StageReference,
				Detail:   r.String(),
				Rows:     int(res.Modified),
				Attempts: attempts,
				Duration: res.Duration,
				Err:      err,
			})
			p.notify(Event{Phase: StageReference, Table: r.ForeignTable, Done: progress.inc(), Total: len(ready), Err: err})
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) forwardFailed(report *Report, table string) bool {
	tr, ok := report.Table(table)
	if !ok {
		return true
	}
	return tr.FailedAt(StageForward)
}

func (p *Pipeline) validate(ctx context.Context, s *schema.RelationalSchema, report *Report) error {
	rel, docs, release, err := p.openBoth(ctx)
	if err != nil {
		return err
	}
	defer release()

	v, err := validate.New(rel, docs, s)
	if err != nil {
		return err
	}

	skip := map[string]bool{}
	for _, t := range s.DataTables() {
		if p.forwardFailed(report, t.Name) {
			skip[t.Name] = true
		}
	}

	res, err := v.Run(ctx, skip)
	for _, o := range res.Outcomes {
		report.record(o.Table, StageOutcome{
			Stage:  StageValidate,
			Detail: o.Stage.String(),
			Rows:   o.Rows,
			Err:    o.Err,
		})
	}
	for _, rec := range res.Records {
		report.recordDiff(rec)
	}
	p.notify(Event{Phase: StageValidate, Done: 1, Total: 1, Err: err})
	return err
}
