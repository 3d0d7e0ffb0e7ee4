// Package validate rebuilds the source schema in a sibling MySQL database,
// loads it back from the migrated collections and diffs the two. It proves
// the forward migration lost nothing.
package validate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/translate"
)

// DatabaseSuffix is appended to the source database name to name the
// validation database.
const DatabaseSuffix = "_validated"

type Stage int

const (
	StageInit Stage = iota
	StageCreateValidationDatabase
	StageCreateTables
	StageReinsertData
	StageAddForeignKeys
	StageCreateTriggers
	StageDiff
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageCreateValidationDatabase:
		return "create-validation-database"
	case StageCreateTables:
		return "create-tables"
	case StageReinsertData:
		return "reinsert-data"
	case StageAddForeignKeys:
		return "add-foreign-keys"
	case StageCreateTriggers:
		return "create-triggers"
	case StageDiff:
		return "diff"
	case StageClosed:
		return "closed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Outcome is the result of one stage for one table.
type Outcome struct {
	Table string
	Stage Stage
	Rows  int
	Err   error
}

// Validator walks the stages in order. Each method fails when called out of
// order; per-table failures are returned as outcomes instead.
type Validator struct {
	source drivers.RelationalStore
	target drivers.RelationalStore
	docs   drivers.DocumentStore
	schema *schema.RelationalSchema
	record translate.Record
	stage  Stage

	failed map[string]bool
}

func New(source drivers.RelationalStore, docs drivers.DocumentStore, s *schema.RelationalSchema) (*Validator, error) {
	rec, err := translate.Translate(s)
	if err != nil {
		return nil, fmt.Errorf("failed to translate schema: %w", err)
	}
	return &Validator{
		source: source,
		docs:   docs,
		schema: s,
		record: rec,
		failed: map[string]bool{},
	}, nil
}

func (v *Validator) Stage() Stage { return v.stage }

func (v *Validator) Record() translate.Record { return v.record }

func (v *Validator) DatabaseName() string {
	return v.source.Database() + DatabaseSuffix
}

func (v *Validator) advance(from, to Stage) error {
	if v.stage != from {
		return fmt.Errorf("cannot enter %s from %s", to, v.stage)
	}
	v.stage = to
	return nil
}

// CreateValidationDatabase drops any previous validation database and
// creates an empty one.
func (v *Validator) CreateValidationDatabase(ctx context.Context) error {
	if err := v.advance(StageInit, StageCreateValidationDatabase); err != nil {
		return err
	}

	name := quoteIdent(v.DatabaseName())
	if _, err := v.source.Exec(ctx, "DROP DATABASE IF EXISTS "+name); err != nil {
		return fmt.Errorf("failed to drop validation database: %w", err)
	}
	if _, err := v.source.Exec(ctx, "CREATE DATABASE "+name); err != nil {
		return fmt.Errorf("failed to create validation database: %w", err)
	}
	target, err := v.source.WithDatabase(ctx, v.DatabaseName())
	if err != nil {
		return fmt.Errorf("failed to open validation database: %w", err)
	}
	v.target = target

	logger.Info("Validation database created", map[string]any{"database": v.DatabaseName()})
	return nil
}

func (v *Validator) CreateTables(ctx context.Context) ([]Outcome, error) {
	if err := v.advance(StageCreateValidationDatabase, StageCreateTables); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, def := range v.record.Tables {
		o := Outcome{Table: def.Name, Stage: StageCreateTables}
		if _, err := v.target.Exec(ctx, CreateTableSQL(def)); err != nil {
			o.Err = err
			v.fail(o)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// ReinsertData loads every table whose creation succeeded. Tables listed in
// skip, typically those whose forward migration failed, are left empty.
func (v *Validator) ReinsertData(ctx context.Context, skip map[string]bool) ([]Outcome, error) {
	if err := v.advance(StageCreateTables, StageReinsertData); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, tbl := range v.schema.DataTables() {
		if v.failed[tbl.Name] || skip[tbl.Name] {
			continue
		}
		o := Outcome{Table: tbl.Name, Stage: StageReinsertData}
		o.Rows, o.Err = Reinsert(ctx, v.docs, v.target, tbl)
		if o.Err != nil {
			v.fail(o)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// AddForeignKeys adds the constraints after every table holds its data.
// Constraint violations are recorded against the owning table.
func (v *Validator) AddForeignKeys(ctx context.Context) ([]Outcome, error) {
	if err := v.advance(StageReinsertData, StageAddForeignKeys); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	order, grouped := ForeignKeysByTable(v.record.ForeignKeys)
	for _, table := range order {
		o := Outcome{Table: table, Stage: StageAddForeignKeys}
		if _, err := v.target.Exec(ctx, AddForeignKeysSQL(table, grouped[table])); err != nil {
			o.Err = err
			v.fail(o)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func (v *Validator) CreateTriggers(ctx context.Context) ([]Outcome, error) {
	if err := v.advance(StageAddForeignKeys, StageCreateTriggers); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, tr := range v.record.Triggers {
		o := Outcome{Table: tr.Table, Stage: StageCreateTriggers}
		if _, err := v.target.Exec(ctx, CreateTriggerSQL(tr)); err != nil {
			o.Err = fmt.Errorf("trigger %s: %w", tr.Name, err)
			v.fail(o)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Diff compares every table and stores the records in LogCollection. A
// store failure is logged; the records are returned regardless.
func (v *Validator) Diff(ctx context.Context) ([]LogRecord, error) {
	if err := v.advance(StageCreateTriggers, StageDiff); err != nil {
		return nil, err
	}

	var records []LogRecord
	for _, tbl := range v.schema.DataTables() {
		rec := Diff(ctx, v.source, v.source.Database(), v.DatabaseName(), tbl)
		records = append(records, rec)

		filter := bson.D{{Key: "table-name", Value: tbl.Name}}
		if err := v.docs.ReplaceOne(ctx, LogCollection, filter, rec.Document()); err != nil {
			logger.Warn("Failed to store diff record", map[string]any{
				"table": tbl.Name,
				"error": err.Error(),
			})
		}
		if !rec.Clean() {
			logger.Warn("Validation found differences", map[string]any{
				"table":       tbl.Name,
				"schema_rows": len(rec.Schema),
				"data_rows":   len(rec.Data),
				"error":       rec.Error,
			})
		}
	}
	return records, nil
}

// Close releases the validation database handle. The database itself is
// kept for inspection.
func (v *Validator) Close() error {
	v.stage = StageClosed
	if v.target == nil {
		return nil
	}
	err := v.target.Close()
	v.target = nil
	return err
}

func (v *Validator) fail(o Outcome) {
	v.failed[o.Table] = true

	fields := map[string]any{
		"table": o.Table,
		"stage": o.Stage.String(),
		"error": o.Err.Error(),
	}
	if errors.Is(o.Err, drivers.ErrConstraintViolation) {
		fields["constraint"] = true
	}
	logger.Warn("Validation stage failed", fields)
}

// Report gathers everything one validation run produced.
type Report struct {
	Database string
	Outcomes []Outcome
	Records  []LogRecord
	Duration time.Duration
}

// Run executes every stage in order and closes the validator. skip names
// tables to leave out of reinsertion.
func (v *Validator) Run(ctx context.Context, skip map[string]bool) (Report, error) {
	start := time.Now()
	report := Report{Database: v.DatabaseName()}
	defer func() {
		if err := v.Close(); err != nil {
			logger.Warn("Failed to close validation database", map[string]any{"error": err.Error()})
		}
	}()

	if err := v.CreateValidationDatabase(ctx); err != nil {
		return report, err
	}
	steps := []func(context.Context) ([]Outcome, error){
		v.CreateTables,
		func(ctx context.Context) ([]Outcome, error) { return v.ReinsertData(ctx, skip) },
		v.AddForeignKeys,
		v.CreateTriggers,
	}
	for _, step := range steps {
		outcomes, err := step(ctx)
		report.Outcomes = append(report.Outcomes, outcomes...)
		if err != nil {
			return report, err
		}
	}

	records, err := v.Diff(ctx)
	report.Records = records
	report.Duration = time.Since(start)
	return report, err
}
