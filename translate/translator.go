// Package translate turns the relational schema into MongoDB collections,
// validators and indexes, and reshapes it into the record the validation
// stage uses to recreate the relational side.
package translate

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/schema"
)

// Collections written next to the migrated data.
const (
	SchemaCollection     = "schema"
	SchemaViewCollection = "schema_view"
)

type State int

const (
	StateInit State = iota
	StateSchemaLoaded
	StateValidatorsCreated
	StateIndexesCreated
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSchemaLoaded:
		return "schema-loaded"
	case StateValidatorsCreated:
		return "validators-created"
	case StateIndexesCreated:
		return "indexes-created"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome records what happened to one collection during a translation step.
// Err is nil on success. Skipped is set when the step chose not to act.
type Outcome struct {
	Collection string
	Step       string
	Detail     string
	Skipped    bool
	Err        error
}

type Translator struct {
	docs drivers.DocumentStore
	// rel is optional. Without it indexes lacking a type are skipped.
	rel drivers.RelationalStore

	schema *schema.RelationalSchema
	state  State
}

func New(docs drivers.DocumentStore, rel drivers.RelationalStore) *Translator {
	return &Translator{docs: docs, rel: rel}
}

func (t *Translator) State() State {
	return t.state
}

func (t *Translator) Schema() *schema.RelationalSchema {
	return t.schema
}

func (t *Translator) expect(want State) error {
	if t.state != want {
		return fmt.Errorf("translator is %s, want %s", t.state, want)
	}
	return nil
}

// Load parses the introspection document and stores both the raw document
// and its converted view in the target database.
func (t *Translator) Load(ctx context.Context, raw []byte) error {
	if err := t.expect(StateInit); err != nil {
		return err
	}

	s, err := schema.Parse(raw)
	if err != nil {
		return err
	}
	return t.LoadSchema(ctx, s)
}

// LoadSchema is Load for an already parsed schema.
func (t *Translator) LoadSchema(ctx context.Context, s *schema.RelationalSchema) error {
	if err := t.expect(StateInit); err != nil {
		return err
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(s.Raw, false, &doc); err != nil {
		return fmt.Errorf("failed to convert schema document: %w", err)
	}
	if err := t.docs.ReplaceOne(ctx, SchemaCollection, bson.D{}, doc); err != nil {
		return fmt.Errorf("failed to store schema document: %w", err)
	}
	if err := t.docs.ReplaceOne(ctx, SchemaViewCollection, bson.D{}, s.View()); err != nil {
		return fmt.Errorf("failed to store schema view: %w", err)
	}

	t.schema = s
	t.state = StateSchemaLoaded
	return nil
}

// TranslateValidators creates one collection per table and view, then applies
// a $jsonSchema validator to every table. A failing collection is recorded
// and the loop continues.
func (t *Translator) TranslateValidators(ctx context.Context) ([]Outcome, error) {
	if err := t.expect(StateSchemaLoaded); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	failed := make(map[string]bool)
	for _, tbl := range t.schema.Tables {
		if err := t.docs.CreateCollection(ctx, tbl.Name); err != nil {
			logger.Error("Failed to create collection", map[string]any{
				"collection": tbl.Name,
				"error":      err,
			})
			outcomes = append(outcomes, Outcome{Collection: tbl.Name, Step: "create", Err: err})
			failed[tbl.Name] = true
		}
	}

	for _, tbl := range t.schema.DataTables() {
		if failed[tbl.Name] {
			continue
		}
		validator, err := BuildValidator(tbl)
		if err == nil {
			err = t.docs.ApplyValidator(ctx, tbl.Name, validator)
		}
		if err != nil {
			logger.Error("Failed to apply validator", map[string]any{
				"collection": tbl.Name,
				"error":      err,
			})
			outcomes = append(outcomes, Outcome{Collection: tbl.Name, Step: "validator", Err: err})
			continue
		}
		outcomes = append(outcomes, Outcome{Collection: tbl.Name, Step: "validator"})
	}

	t.state = StateValidatorsCreated
	return outcomes, nil
}

// TranslateIndexes creates the secondary indexes of every table.
func (t *Translator) TranslateIndexes(ctx context.Context) ([]Outcome, error) {
	if err := t.expect(StateValidatorsCreated); err != nil {
		return nil, err
	}

	types := map[string]map[string]string{}
	if t.rel != nil {
		var err error
		types, err = t.rel.IndexTypes(ctx, t.schema.Database)
		if err != nil {
			logger.Warn("Failed to read index types", map[string]any{
				"database": t.schema.Database,
				"error":    err,
			})
			types = map[string]map[string]string{}
		}
	}

	var outcomes []Outcome
	for _, plan := range PlanIndexes(t.schema, types) {
		if plan.Skip != "" {
			logger.Debug("Skipping index", map[string]any{
				"collection": plan.Collection,
				"index":      plan.Name,
				"reason":     plan.Skip,
			})
			outcomes = append(outcomes, Outcome{Collection: plan.Collection, Step: "index", Detail: plan.Name + ": " + plan.Skip, Skipped: true})
			continue
		}
		err := t.docs.CreateIndex(ctx, plan.Collection, plan.Name, plan.Keys, plan.Unique)
		if err != nil {
			logger.Error("Failed to create index", map[string]any{
				"collection": plan.Collection,
				"index":      plan.Name,
				"error":      err,
			})
		}
		outcomes = append(outcomes, Outcome{Collection: plan.Collection, Step: "index", Detail: plan.Name, Err: err})
	}

	t.state = StateIndexesCreated
	return outcomes, nil
}

// DropViews removes the collections created for views. Views carry no data
// of their own.
func (t *Translator) DropViews(ctx context.Context) ([]Outcome, error) {
	if err := t.expect(StateIndexesCreated); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, v := range t.schema.Views() {
		err := t.docs.DropCollection(ctx, v.Name)
		if err != nil {
			logger.Warn("Failed to drop view collection", map[string]any{
				"collection": v.Name,
				"error":      err,
			})
		}
		outcomes = append(outcomes, Outcome{Collection: v.Name, Step: "drop-view", Err: err})
	}

	t.state = StateDone
	return outcomes, nil
}
