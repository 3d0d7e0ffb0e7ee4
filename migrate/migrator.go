// Package migrate copies table rows into MongoDB collections, one document
// per row.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/mysql"
	"github.com/stephenafamo/bob/dialect/mysql/sm"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/typemap"
)

type Result struct {
	Table    string
	Rows     int
	Inserted int
	Duration time.Duration
}

type Migrator struct {
	rel      drivers.RelationalStore
	docs     drivers.DocumentStore
	database string

	// BatchSize splits the insert of one table into several bulk writes.
	// Zero writes every document at once.
	BatchSize int
}

func New(rel drivers.RelationalStore, docs drivers.DocumentStore, database string) *Migrator {
	return &Migrator{rel: rel, docs: docs, database: database}
}

// SelectQuery builds the projection of every column of tbl. Geometry columns
// are read as WKT.
func SelectQuery(ctx context.Context, database string, tbl *schema.Table) (string, []any, error) {
	columns := make([]any, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		if typemap.IsGeometry(c.Type) {
			columns = append(columns, mysql.F("ST_AsText", mysql.Quote(c.Name))().As(c.Name))
			continue
		}
		columns = append(columns, mysql.Quote(c.Name))
	}

	q := mysql.Select(
		sm.Columns(columns...),
		sm.From(mysql.Quote(database, tbl.Name)),
	)
	return bob.Build(ctx, q)
}

// MigrateTable reads every row of tbl and writes it to the collection of the
// same name. NULL cells are left out of the document. A coercion failure
// aborts the table before anything is written.
func (m *Migrator) MigrateTable(ctx context.Context, tbl *schema.Table) (Result, error) {
	start := time.Now()
	res := Result{Table: tbl.Name}

	query, args, err := SelectQuery(ctx, m.database, tbl)
	if err != nil {
		return res, fmt.Errorf("failed to build select for %s: %w", tbl.Name, err)
	}
	var (
		docs    []bson.D
		convErr error
	)
	err = m.rel.QueryEach(ctx, query, args, func(row []any) error {
		res.Rows++
		doc, err := Document(tbl, row)
		if err != nil {
			convErr = err
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if convErr != nil {
		return res, convErr
	}
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", tbl.Name, err)
	}

	for _, batch := range batches(docs, m.BatchSize) {
		n, err := m.docs.BulkInsert(ctx, tbl.Name, batch)
		res.Inserted += n
		if err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("failed to write %s: %w", tbl.Name, err)
		}
	}

	res.Duration = time.Since(start)
	logger.Info("Table migrated", map[string]any{
		"table":    tbl.Name,
		"rows":     res.Rows,
		"inserted": res.Inserted,
		"duration": res.Duration.String(),
	})
	return res, nil
}

// Document converts one row, in column order, into a sparse document.
func Document(tbl *schema.Table, row []any) (bson.D, error) {
	if len(row) != len(tbl.Columns) {
		return nil, fmt.Errorf("row of %s has %d cells, want %d", tbl.Name, len(row), len(tbl.Columns))
	}

	doc := make(bson.D, 0, len(row))
	for i, c := range tbl.Columns {
		v, err := typemap.ToDocumentValue(c.Type, row[i])
		if err != nil {
			return nil, typemap.Annotate(err, tbl.Name, c.Name)
		}
		if v == nil {
			continue
		}
		doc = append(doc, bson.E{Key: c.Name, Value: v})
	}
	return doc, nil
}

func batches(docs []bson.D, size int) [][]bson.D {
	if len(docs) == 0 {
		return nil
	}
	if size <= 0 || size >= len(docs) {
		return [][]bson.D{docs}
	}
	var out [][]bson.D
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		out = append(out, docs[start:end])
	}
	return out
}
