package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/mysql"
	"github.com/stephenafamo/bob/dialect/mysql/dialect"
	"github.com/stephenafamo/bob/dialect/mysql/sm"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/typemap"
)

// LogCollection holds one LogRecord per validated table.
const LogCollection = "validating_log"

// LogRecord is the difference between a source table and its validated copy.
// Schema lists column definitions present on one side only. Data lists rows
// present on one side only; a changed row shows up as one removed and one
// added row.
type LogRecord struct {
	Table  string                `json:"table"`
	Schema []drivers.ColumnDelta `json:"schema"`
	Data   [][]any               `json:"data"`
	Error  string                `json:"error,omitempty"`
}

// Clean reports whether both sides matched.
func (r LogRecord) Clean() bool {
	return r.Error == "" && len(r.Schema) == 0 && len(r.Data) == 0
}

// Document is the validating_log shape of r.
func (r LogRecord) Document() bson.D {
	schemaDiff := bson.A{}
	for _, d := range r.Schema {
		schemaDiff = append(schemaDiff, d)
	}
	data := bson.A{}
	for _, row := range r.Data {
		data = append(data, bson.A(row))
	}
	doc := bson.D{
		{Key: "table-name", Value: r.Table},
		{Key: "schema", Value: schemaDiff},
		{Key: "data", Value: data},
	}
	if r.Error != "" {
		doc = append(doc, bson.E{Key: "error", Value: r.Error})
	}
	return doc
}

// DiffQuery selects the rows of table that appear in exactly one of the two
// databases.
func DiffQuery(ctx context.Context, source, validated string, tbl *schema.Table) (string, []any, error) {
	side := func(database string) bob.Query {
		return mysql.Select(
			sm.Columns(projection(tbl)...),
			sm.From(mysql.Quote(database, tbl.Name)),
		)
	}

	inner := mysql.Select(
		sm.Columns(projection(tbl)...),
		sm.From(mysql.Quote(source, tbl.Name)),
		sm.UnionAll(side(validated)),
	)

	outer := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(quotedColumns(tbl)...),
		sm.From(inner).As("C"),
	}
	for _, c := range tbl.Columns {
		outer = append(outer, sm.GroupBy(mysql.Quote(c.Name)))
	}
	outer = append(outer, sm.Having(mysql.Raw("COUNT(*) = 1")))

	return bob.Build(ctx, mysql.Select(outer...))
}

func projection(tbl *schema.Table) []any {
	cols := make([]any, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		if typemap.IsGeometry(c.Type) {
			cols = append(cols, mysql.F("ST_AsText", mysql.Quote(c.Name))().As(c.Name))
			continue
		}
		cols = append(cols, mysql.Quote(c.Name))
	}
	return cols
}

func quotedColumns(tbl *schema.Table) []any {
	cols := make([]any, len(tbl.Columns))
	for i, c := range tbl.Columns {
		cols[i] = mysql.Quote(c.Name)
	}
	return cols
}

// Diff compares one table across the source and validated databases. It
// never fails; query errors end up in the record.
func Diff(ctx context.Context, rel drivers.RelationalStore, source, validated string, tbl *schema.Table) LogRecord {
	rec := LogRecord{Table: tbl.Name}

	deltas, err := rel.CompareColumns(ctx, source, validated, tbl.Name)
	if err != nil {
		rec.Error = fmt.Sprintf("schema diff: %v", err)
		return rec
	}
	rec.Schema = deltas

	query, args, err := DiffQuery(ctx, source, validated, tbl)
	if err != nil {
		rec.Error = fmt.Sprintf("data diff: %v", err)
		return rec
	}
	rs, err := rel.Query(ctx, query, args...)
	if err != nil {
		rec.Error = fmt.Sprintf("data diff: %v", err)
		return rec
	}
	for _, row := range rs.Rows {
		rec.Data = append(rec.Data, printable(row))
	}
	return rec
}

// printable turns driver cells into values that serialize readably.
func printable(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		switch v := v.(type) {
		case []byte:
			out[i] = string(v)
		case time.Time:
			out[i] = v.UTC().Format("2006-01-02 15:04:05.999999")
		default:
			out[i] = v
		}
	}
	return out
}
