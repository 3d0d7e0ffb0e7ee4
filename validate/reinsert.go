package validate

import (
	"context"
	"fmt"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/mysql"
	"github.com/stephenafamo/bob/dialect/mysql/dialect"
	"github.com/stephenafamo/bob/dialect/mysql/im"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/typemap"
)

// maxPlaceholders is the prepared statement parameter limit of MySQL.
const maxPlaceholders = 65535

// Rows projects every document of a collection onto the table columns and
// converts each value back to its relational form. Missing fields become
// NULL. A nested object fails the whole table.
func Rows(tbl *schema.Table, docs []bson.D) ([][]any, error) {
	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		fields := make(map[string]any, len(doc))
		for _, e := range doc {
			fields[e.Key] = e.Value
		}

		row := make([]any, len(tbl.Columns))
		for i, c := range tbl.Columns {
			v, ok := fields[c.Name]
			if !ok {
				continue
			}
			rv, err := typemap.ToRelationalValue(c.Type, v)
			if err != nil {
				return nil, typemap.Annotate(err, tbl.Name, c.Name)
			}
			row[i] = rv
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// InsertStatements builds INSERT IGNORE statements for rows, each holding as
// many rows as fit under the placeholder limit.
func InsertStatements(ctx context.Context, database string, tbl *schema.Table, rows [][]any) ([]Statement, error) {
	if len(rows) == 0 || len(tbl.Columns) == 0 {
		return nil, nil
	}

	perStatement := max(maxPlaceholders/len(tbl.Columns), 1)
	columns := tbl.ColumnNames()

	var stmts []Statement
	for start := 0; start < len(rows); start += perStatement {
		end := min(start+perStatement, len(rows))

		mods := []bob.Mod[*dialect.InsertQuery]{
			im.Into(mysql.Quote(database, tbl.Name), columns...),
			im.Ignore(),
		}
		for _, row := range rows[start:end] {
			mods = append(mods, im.Values(rowExpressions(tbl, row)...))
		}

		query, args, err := bob.Build(ctx, mysql.Insert(mods...))
		if err != nil {
			return nil, fmt.Errorf("failed to build insert for %s: %w", tbl.Name, err)
		}
		stmts = append(stmts, Statement{Query: query, Args: args})
	}
	return stmts, nil
}

func rowExpressions(tbl *schema.Table, row []any) []bob.Expression {
	exprs := make([]bob.Expression, len(row))
	for i, v := range row {
		if v != nil && typemap.IsGeometry(tbl.Columns[i].Type) {
			exprs[i] = mysql.F("ST_GeomFromText", mysql.Arg(v))
			continue
		}
		exprs[i] = mysql.Arg(v)
	}
	return exprs
}

// Statement is a built query with its arguments.
type Statement struct {
	Query string
	Args  []any
}

// Reinsert reads the collection of tbl and writes it into the table of the
// same name in one transaction. Rows that collide on a key are ignored, so
// running it twice leaves the table unchanged.
func Reinsert(ctx context.Context, docs drivers.DocumentStore, rel drivers.RelationalStore, tbl *schema.Table) (int, error) {
	found, err := docs.Find(ctx, tbl.Name, bson.D{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read collection %s: %w", tbl.Name, err)
	}
	rows, err := Rows(tbl, found)
	if err != nil {
		return 0, err
	}
	stmts, err := InsertStatements(ctx, rel.Database(), tbl, rows)
	if err != nil {
		return 0, err
	}

	err = rel.InTx(ctx, func(tx drivers.Execer) error {
		for _, st := range stmts {
			if _, err := tx.Exec(ctx, st.Query, st.Args...); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", tbl.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
