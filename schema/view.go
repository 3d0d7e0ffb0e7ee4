package schema

// View is the converted, name-resolved form of the schema that gets stored
// next to the migrated collections so that users can inspect what the source
// looked like without the crawler's identity references.
type View struct {
	DatabaseName    string           `bson:"database-name" json:"database-name"`
	DatabaseVersion string           `bson:"database-version" json:"database-version"`
	Schema          string           `bson:"schema" json:"schema"`
	Tables          []TableView      `bson:"tables" json:"tables"`
	ForeignKeys     []ForeignKeyView `bson:"foreign-keys" json:"foreign-keys"`
}

type TableView struct {
	Name           string           `bson:"name" json:"name"`
	Type           Kind             `bson:"type" json:"type"`
	Engine         string           `bson:"engine" json:"engine"`
	TableCollation string           `bson:"table-collation" json:"table-collation"`
	Constraints    []ConstraintView `bson:"constraints" json:"constraints"`
	Triggers       []TriggerView    `bson:"triggers" json:"triggers"`
	Columns        []ColumnView     `bson:"columns" json:"columns"`
	Indexes        []IndexView      `bson:"indexes" json:"indexes"`
}

type ConstraintView struct {
	Name       string `bson:"name" json:"name"`
	Type       string `bson:"type" json:"type"`
	Definition string `bson:"definition" json:"definition"`
}

type TriggerView struct {
	Name              string `bson:"name" json:"name"`
	ActionCondition   string `bson:"action-condition" json:"action-condition"`
	ActionOrder       int    `bson:"action-order" json:"action-order"`
	ActionOrientation string `bson:"action-orientation" json:"action-orientation"`
	ActionStatement   string `bson:"action-statement" json:"action-statement"`
	ConditionTiming   string `bson:"condition-timing" json:"condition-timing"`
	EventType         string `bson:"event-manipulation-type" json:"event-manipulation-type"`
}

type ColumnView struct {
	Name            string  `bson:"name" json:"name"`
	CharacterSet    *string `bson:"character-set-name" json:"character-set-name"`
	Collation       *string `bson:"collation-name" json:"collation-name"`
	ColumnType      string  `bson:"column-type" json:"column-type"`
	Nullable        bool    `bson:"nullable" json:"nullable"`
	AutoIncremented bool    `bson:"auto-incremented" json:"auto-incremented"`
	DefaultValue    *string `bson:"default-value" json:"default-value"`
}

type IndexView struct {
	Name    string            `bson:"name" json:"name"`
	Unique  bool              `bson:"unique" json:"unique"`
	Columns []IndexColumnView `bson:"columns" json:"columns"`
}

type IndexColumnView struct {
	Name  string `bson:"name" json:"name"`
	Table string `bson:"table" json:"table"`
}

type ForeignKeyView struct {
	Name             string                `bson:"name" json:"name"`
	ColumnReferences []ColumnReferenceView `bson:"column-references" json:"column-references"`
	DeleteRule       string                `bson:"delete-rule" json:"delete-rule"`
	UpdateRule       string                `bson:"update-rule" json:"update-rule"`
}

type ColumnReferenceView struct {
	KeySequence      int    `bson:"key-sequence" json:"key-sequence"`
	ForeignKeyColumn string `bson:"foreign-key-column" json:"foreign-key-column"`
	ForeignKeyTable  string `bson:"foreign-key-table" json:"foreign-key-table"`
	PrimaryKeyColumn string `bson:"primary-key-column" json:"primary-key-column"`
	PrimaryKeyTable  string `bson:"primary-key-table" json:"primary-key-table"`
}

// View builds the converted schema record.
func (s *RelationalSchema) View() View {
	v := View{
		DatabaseName:    s.ProductName,
		DatabaseVersion: s.ProductVersion,
		Schema:          s.Database,
		Tables:          make([]TableView, 0, len(s.Tables)),
		ForeignKeys:     []ForeignKeyView{},
	}

	for _, t := range s.Tables {
		tv := TableView{
			Name:           t.Name,
			Type:           t.Kind,
			Engine:         t.Engine,
			TableCollation: t.Collation,
			Constraints:    []ConstraintView{},
			Triggers:       []TriggerView{},
			Columns:        make([]ColumnView, 0, len(t.Columns)),
			Indexes:        []IndexView{},
		}
		for _, c := range t.Constraints {
			tv.Constraints = append(tv.Constraints, ConstraintView{Name: c.Name, Type: c.Type, Definition: c.Definition})
		}
		for _, tr := range t.Triggers {
			tv.Triggers = append(tv.Triggers, TriggerView{
				Name:              tr.Name,
				ActionCondition:   tr.Condition,
				ActionOrder:       tr.Order,
				ActionOrientation: tr.Orientation,
				ActionStatement:   tr.Statement,
				ConditionTiming:   tr.Timing,
				EventType:         tr.Event,
			})
		}
		for _, c := range t.Columns {
			tv.Columns = append(tv.Columns, ColumnView{
				Name:            c.Name,
				CharacterSet:    c.CharacterSet,
				Collation:       c.Collation,
				ColumnType:      c.Type,
				Nullable:        c.Nullable,
				AutoIncremented: c.AutoIncrement,
				DefaultValue:    c.Default,
			})
		}
		for _, idx := range t.Indexes {
			iv := IndexView{Name: idx.Name, Unique: idx.Unique, Columns: []IndexColumnView{}}
			for _, id := range idx.ColumnIDs {
				c := s.columns[id]
				iv.Columns = append(iv.Columns, IndexColumnView{Name: c.Name, Table: c.TableName})
			}
			tv.Indexes = append(tv.Indexes, iv)
		}
		v.Tables = append(v.Tables, tv)

		for _, fk := range t.ForeignKeys {
			fv := ForeignKeyView{
				Name:       fk.Name,
				DeleteRule: fk.DeleteRule,
				UpdateRule: fk.UpdateRule,
			}
			for _, ref := range fk.References {
				fc, pc := s.columns[ref.ForeignColumnID], s.columns[ref.PrimaryColumnID]
				fv.ColumnReferences = append(fv.ColumnReferences, ColumnReferenceView{
					KeySequence:      ref.Seq,
					ForeignKeyColumn: fc.Name,
					ForeignKeyTable:  fc.TableName,
					PrimaryKeyColumn: pc.Name,
					PrimaryKeyTable:  pc.TableName,
				})
			}
			v.ForeignKeys = append(v.ForeignKeys, fv)
		}
	}
	return v
}
