package translate

import (
	"fmt"
	"strings"

	"github.com/sheenazien8/mysql2mongo/schema"
)

// Record is everything needed to recreate the relational schema: tables
// without foreign keys, the foreign keys to add afterwards, and triggers.
type Record struct {
	Database    string
	Tables      []TableDef
	ForeignKeys []ForeignKeyDef
	Triggers    []TriggerDef
}

type TableDef struct {
	Name       string
	Engine     string
	Columns    []ColumnDef
	PrimaryKey []string
}

type ColumnDef struct {
	Name          string
	Type          string
	Nullable      bool
	AutoIncrement bool
	Default       *string
	LiteralPrefix string
	LiteralSuffix string
	CharacterSet  *string
	Collation     *string
}

type ForeignKeyDef struct {
	Name      string
	Table     string
	Column    string
	RefTable  string
	RefColumn string
	// OnDelete and OnUpdate are SQL rule keywords, empty when the rule is
	// unknown.
	OnDelete string
	OnUpdate string
}

type TriggerDef struct {
	Name        string
	Table       string
	Timing      string
	Event       string
	Orientation string
	Statement   string
}

// Translate builds the full record for s.
func Translate(s *schema.RelationalSchema) (Record, error) {
	tables, err := TranslateTables(s)
	if err != nil {
		return Record{}, err
	}
	fks, err := TranslateForeignKeys(s)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Database:    s.Database,
		Tables:      tables,
		ForeignKeys: fks,
		Triggers:    TranslateTriggers(s),
	}, nil
}

// TranslateTables reshapes every TABLE entry. Views are left out.
func TranslateTables(s *schema.RelationalSchema) ([]TableDef, error) {
	var defs []TableDef
	for _, tbl := range s.DataTables() {
		def := TableDef{Name: tbl.Name, Engine: tbl.Engine}
		for _, c := range tbl.Columns {
			def.Columns = append(def.Columns, ColumnDef{
				Name:          c.Name,
				Type:          c.Type,
				Nullable:      c.Nullable,
				AutoIncrement: c.AutoIncrement,
				Default:       c.Default,
				LiteralPrefix: c.LiteralPrefix,
				LiteralSuffix: c.LiteralSuffix,
				CharacterSet:  c.CharacterSet,
				Collation:     c.Collation,
			})
		}
		if pk, ok := tbl.PrimaryKey(); ok {
			for _, id := range pk.ColumnIDs {
				c, ok := s.Column(id)
				if !ok {
					return nil, fmt.Errorf("primary key of %s references unknown column %q", tbl.Name, id)
				}
				def.PrimaryKey = append(def.PrimaryKey, c.Name)
			}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// TranslateForeignKeys resolves every foreign key to table and column names
// using its first column reference.
func TranslateForeignKeys(s *schema.RelationalSchema) ([]ForeignKeyDef, error) {
	var defs []ForeignKeyDef
	for _, tbl := range s.DataTables() {
		for _, fk := range tbl.ForeignKeys {
			rel := fk.Relation()
			fc, ok := s.Column(rel.ForeignColumnID)
			if !ok {
				return nil, fmt.Errorf("foreign key %s references unknown column %q", fk.Name, rel.ForeignColumnID)
			}
			pc, ok := s.Column(rel.PrimaryColumnID)
			if !ok {
				return nil, fmt.Errorf("foreign key %s references unknown column %q", fk.Name, rel.PrimaryColumnID)
			}
			defs = append(defs, ForeignKeyDef{
				Name:      fk.Name,
				Table:     fc.TableName,
				Column:    fc.Name,
				RefTable:  pc.TableName,
				RefColumn: pc.Name,
				OnDelete:  RuleKeyword(fk.DeleteRule),
				OnUpdate:  RuleKeyword(fk.UpdateRule),
			})
		}
	}
	return defs, nil
}

func TranslateTriggers(s *schema.RelationalSchema) []TriggerDef {
	var defs []TriggerDef
	for _, tbl := range s.DataTables() {
		for _, tr := range tbl.Triggers {
			defs = append(defs, TriggerDef{
				Name:        tr.Name,
				Table:       tbl.Name,
				Timing:      strings.ToUpper(tr.Timing),
				Event:       strings.ToUpper(tr.Event),
				Orientation: strings.ToUpper(tr.Orientation),
				Statement:   tr.Statement,
			})
		}
	}
	return defs
}

// RuleKeyword turns a crawler rule name (noAction, setNull, cascade) into
// its SQL keyword. Unknown rules return "".
func RuleKeyword(rule string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(rule, " ", ""), "_", "")) {
	case "cascade":
		return "CASCADE"
	case "restrict":
		return "RESTRICT"
	case "setnull":
		return "SET NULL"
	case "setdefault":
		return "SET DEFAULT"
	case "noaction":
		return "NO ACTION"
	}
	return ""
}
