// Package reference adds DBRef fields next to foreign key columns once both
// sides of a relation have been migrated.
package reference

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/schema"
)

// FieldPrefix is prepended to the foreign column name to form the DBRef
// field.
const FieldPrefix = "db_ref_"

// Relation is a foreign key between two different tables, by name.
type Relation struct {
	Name          string
	ForeignTable  string
	ForeignColumn string
	PrimaryTable  string
	PrimaryColumn string
}

func (r Relation) Field() string {
	return FieldPrefix + r.ForeignColumn
}

func (r Relation) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.ForeignTable, r.ForeignColumn, r.PrimaryTable, r.PrimaryColumn)
}

type Result struct {
	Relation Relation
	Keys     int
	Matched  int64
	Modified int64
	Duration time.Duration
}

// Relations lists the foreign keys of s whose two tables differ. Only the
// first column pair of a composite key is used.
func Relations(s *schema.RelationalSchema) ([]Relation, error) {
	var rels []Relation
	for _, tbl := range s.DataTables() {
		for _, fk := range tbl.ForeignKeys {
			ref := fk.Relation()
			fc, ok := s.Column(ref.ForeignColumnID)
			if !ok {
				return nil, fmt.Errorf("foreign key %s references unknown column %q", fk.Name, ref.ForeignColumnID)
			}
			pc, ok := s.Column(ref.PrimaryColumnID)
			if !ok {
				return nil, fmt.Errorf("foreign key %s references unknown column %q", fk.Name, ref.PrimaryColumnID)
			}
			if fc.TableName == pc.TableName {
				continue
			}
			rels = append(rels, Relation{
				Name:          fk.Name,
				ForeignTable:  fc.TableName,
				ForeignColumn: fc.Name,
				PrimaryTable:  pc.TableName,
				PrimaryColumn: pc.Name,
			})
		}
	}
	return rels, nil
}

type Converter struct {
	docs drivers.DocumentStore
}

func NewConverter(docs drivers.DocumentStore) *Converter {
	return &Converter{docs: docs}
}

// Convert sets FieldPrefix+column on every foreign document whose key
// matches a primary document. Dangling keys are left without a reference
// and the original column is never touched.
func (c *Converter) Convert(ctx context.Context, rel Relation) (Result, error) {
	start := time.Now()
	res := Result{Relation: rel}

	primaries, err := c.docs.Find(ctx, rel.PrimaryTable, bson.D{}, bson.D{
		{Key: rel.PrimaryColumn, Value: 1},
		{Key: "_id", Value: 1},
	})
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", rel.PrimaryTable, err)
	}

	updates := make([]drivers.Update, 0, len(primaries))
	for _, doc := range primaries {
		key, id, ok := keyAndID(doc, rel.PrimaryColumn)
		if !ok {
			continue
		}
		res.Keys++
		updates = append(updates, drivers.Update{
			Filter: bson.D{{Key: rel.ForeignColumn, Value: key}},
			Update: bson.D{{Key: "$set", Value: bson.D{
				{Key: rel.Field(), Value: bson.D{
					{Key: "$ref", Value: rel.PrimaryTable},
					{Key: "$id", Value: id},
					{Key: "$db", Value: c.docs.Database()},
				}},
			}}},
		})
	}

	res.Matched, res.Modified, err = c.docs.BulkUpdateByFilter(ctx, rel.ForeignTable, updates)
	if err != nil {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("failed to update %s: %w", rel.ForeignTable, err)
	}

	res.Duration = time.Since(start)
	logger.Info("References converted", map[string]any{
		"relation": rel.String(),
		"keys":     res.Keys,
		"matched":  res.Matched,
		"modified": res.Modified,
	})
	return res, nil
}

func keyAndID(doc bson.D, column string) (key, id any, ok bool) {
	var haveKey, haveID bool
	for _, e := range doc {
		switch e.Key {
		case column:
			key, haveKey = e.Value, true
		case "_id":
			id, haveID = e.Value, true
		}
	}
	return key, id, haveKey && haveID
}
