package translate

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/schema"
)

// IndexPlan is one secondary index to create, or the reason it is not
// created when Skip is set.
type IndexPlan struct {
	Collection string
	Name       string
	Keys       bson.D
	Unique     bool
	Skip       string
}

// PlanIndexes maps the non-primary indexes of every table. Equality indexes
// (BTREE, HASH) become ascending single or compound indexes. types supplies
// INDEX_TYPE for indexes whose document entry lacks it, keyed by table then
// index name.
func PlanIndexes(s *schema.RelationalSchema, types map[string]map[string]string) []IndexPlan {
	var plans []IndexPlan
	for _, tbl := range s.DataTables() {
		for _, idx := range tbl.Indexes {
			if idx.IsPrimary() {
				continue
			}
			plans = append(plans, planIndex(s, tbl, idx, types[tbl.Name]))
		}
	}
	return plans
}

func planIndex(s *schema.RelationalSchema, tbl *schema.Table, idx *schema.Index, types map[string]string) IndexPlan {
	plan := IndexPlan{Collection: tbl.Name, Name: idx.Name, Unique: idx.Unique}

	typ := idx.Type
	if typ == "" {
		typ = strings.ToUpper(types[idx.Name])
	}
	switch typ {
	case "BTREE", "HASH":
	case "":
		plan.Skip = "unknown index type"
		return plan
	default:
		plan.Skip = fmt.Sprintf("%s index is not translated", typ)
		return plan
	}

	columns := s.ColumnNames(idx.ColumnIDs)
	if len(columns) == 0 {
		plan.Skip = "index has no columns"
		return plan
	}
	if len(columns) == 1 && columns[0] == "_id" {
		plan.Skip = "_id is always indexed"
		return plan
	}

	for _, c := range columns {
		plan.Keys = append(plan.Keys, bson.E{Key: c, Value: 1})
	}
	return plan
}
