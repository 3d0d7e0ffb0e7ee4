package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Load reads and parses the introspection document at path.
func Load(path string) (*RelationalSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema document: %w", err)
	}
	return Parse(data)
}

// Parse decodes an introspection document. Every shape problem is reported as
// a *MalformedSchemaError.
func Parse(data []byte) (*RelationalSchema, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("", err.Error())
	}
	if doc.Catalog == nil {
		return nil, malformed("catalog", "missing")
	}
	if doc.Catalog.Tables == nil {
		return nil, malformed("catalog.tables", "missing")
	}
	if doc.AllTableColumns == nil {
		return nil, malformed("all-table-columns", "missing")
	}

	s := &RelationalSchema{
		Database:       doc.Catalog.Name,
		ProductName:    doc.Catalog.DatabaseInfo.ProductName,
		ProductVersion: doc.Catalog.DatabaseInfo.ProductVersion,
		Raw:            append([]byte(nil), data...),
		columns:        make(map[string]*Column),
		columnTables:   make(map[string]*Table),
		tablesByName:   make(map[string]*Table),
		indexes:        make(map[string]*Index),
	}

	tables := *doc.Catalog.Tables
	reg := make(registry)
	for _, t := range tables {
		reg.add(t.TableType)
		reg.add(t.PrimaryKey)
		reg.addAll(t.Indexes)
		reg.addAll(t.ForeignKeys)
		reg.addAll(t.Triggers)
		reg.addAll(t.TableConstraints)
	}
	for _, c := range *doc.AllTableColumns {
		reg.add(c.ColumnDataType)
	}

	if err := s.buildColumns(reg, *doc.AllTableColumns); err != nil {
		return nil, err
	}

	for i, rt := range tables {
		path := fmt.Sprintf("catalog.tables[%d]", i)
		t, err := s.buildTable(reg, path, rt)
		if err != nil {
			return nil, err
		}
		if _, dup := s.tablesByName[t.Name]; dup {
			return nil, malformed(path, fmt.Sprintf("duplicate table %q", t.Name))
		}
		s.Tables = append(s.Tables, t)
		s.tablesByName[t.Name] = t
	}

	if err := s.attachForeignKeys(reg, tables); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *RelationalSchema) buildColumns(reg registry, raws []rawColumn) error {
	for i, rc := range raws {
		path := fmt.Sprintf("all-table-columns[%d]", i)
		if rc.ID == "" {
			return malformed(path, "missing @uuid")
		}
		if rc.Name == "" {
			return malformed(path, "missing name")
		}
		if rc.Attributes == nil {
			return malformed(path, "missing attributes")
		}
		colType := attrString(rc.Attributes, "COLUMN_TYPE")
		if colType == nil {
			return malformed(path+".attributes", "missing COLUMN_TYPE")
		}
		if rc.ColumnDataType.empty() {
			return malformed(path, "missing column-data-type")
		}

		var dt rawDataType
		if err := reg.resolve(path+".column-data-type", rc.ColumnDataType, &dt); err != nil {
			return err
		}

		c := &Column{
			ID:            rc.ID,
			Name:          rc.Name,
			Type:          *colType,
			DataType:      dt.Name,
			Width:         rc.Width,
			Nullable:      rc.Nullable,
			AutoIncrement: rc.AutoIncremented,
			Default:       rc.DefaultValue,
			CharacterSet:  attrString(rc.Attributes, "CHARACTER_SET_NAME"),
			Collation:     attrString(rc.Attributes, "COLLATION_NAME"),
		}
		if dt.LiteralPrefix != nil && dt.LiteralSuffix != nil {
			c.LiteralPrefix = *dt.LiteralPrefix
			c.LiteralSuffix = *dt.LiteralSuffix
		}
		if table, _, ok := strings.Cut(rc.ShortName, "."); ok {
			c.TableName = table
		}
		if _, dup := s.columns[c.ID]; dup {
			return malformed(path, fmt.Sprintf("duplicate column id %q", c.ID))
		}
		s.columns[c.ID] = c
	}
	return nil
}

func (s *RelationalSchema) buildTable(reg registry, path string, rt rawTable) (*Table, error) {
	if rt.ID == "" {
		return nil, malformed(path, "missing @uuid")
	}
	if rt.Name == "" {
		return nil, malformed(path, "missing name")
	}
	if rt.Columns == nil {
		return nil, malformed(path, "missing columns")
	}

	t := &Table{
		ID:   rt.ID,
		Name: rt.Name,
		Kind: KindTable,
	}
	if v := attrString(rt.Attributes, "ENGINE"); v != nil {
		t.Engine = *v
	}
	if v := attrString(rt.Attributes, "TABLE_COLLATION"); v != nil {
		t.Collation = *v
	}

	if !rt.TableType.empty() {
		var tt rawTableType
		if err := reg.resolve(path+".table-type", rt.TableType, &tt); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToUpper(tt.TableType), "VIEW") {
			t.Kind = KindView
		}
	}

	for i, n := range rt.Columns {
		c, ok := s.columns[n.ID]
		if !ok {
			return nil, malformed(fmt.Sprintf("%s.columns[%d]", path, i), fmt.Sprintf("unknown column %q", n.ID))
		}
		if owner, taken := s.columnTables[c.ID]; taken && owner != t {
			return nil, malformed(fmt.Sprintf("%s.columns[%d]", path, i), fmt.Sprintf("column %q owned by %s", c.ID, owner.Name))
		}
		c.TableName = t.Name
		t.Columns = append(t.Columns, c)
		s.columnTables[c.ID] = t
	}

	indexNodes := rt.Indexes
	if !rt.PrimaryKey.empty() {
		indexNodes = append(append([]node(nil), rt.Indexes...), rt.PrimaryKey)
	}
	for i, n := range indexNodes {
		ipath := fmt.Sprintf("%s.indexes[%d]", path, i)
		if existing, ok := s.indexes[n.ID]; ok {
			if existing.TableName != t.Name {
				return nil, malformed(ipath, fmt.Sprintf("index %q owned by %s", n.ID, existing.TableName))
			}
			continue
		}
		var ri rawIndex
		if err := reg.resolve(ipath, n, &ri); err != nil {
			return nil, err
		}
		idx := &Index{
			ID:        n.ID,
			Name:      ri.Name,
			TableName: t.Name,
			Unique:    ri.Unique,
		}
		if v := attrString(ri.Attributes, "INDEX_TYPE"); v != nil {
			idx.Type = strings.ToUpper(*v)
		}
		for _, cn := range ri.Columns {
			if _, ok := s.columns[cn.ID]; !ok {
				return nil, malformed(ipath, fmt.Sprintf("unknown column %q", cn.ID))
			}
			idx.ColumnIDs = append(idx.ColumnIDs, cn.ID)
		}
		t.Indexes = append(t.Indexes, idx)
		s.indexes[idx.ID] = idx
	}

	if !rt.PrimaryKey.empty() {
		pk, ok := s.indexes[rt.PrimaryKey.ID]
		if !ok || pk.TableName != t.Name {
			return nil, malformed(path+".primary-key", fmt.Sprintf("index %q is not owned by %s", rt.PrimaryKey.ID, t.Name))
		}
		t.PrimaryKeyID = pk.ID
	}

	seen := make(map[string]bool)
	for i, n := range rt.Triggers {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		var tr rawTrigger
		if err := reg.resolve(fmt.Sprintf("%s.triggers[%d]", path, i), n, &tr); err != nil {
			return nil, err
		}
		t.Triggers = append(t.Triggers, &Trigger{
			ID:          n.ID,
			TableName:   t.Name,
			Name:        tr.Name,
			Timing:      tr.ConditionTiming,
			Event:       tr.EventManipulationType,
			Orientation: tr.ActionOrientation,
			Statement:   tr.ActionStatement,
			Condition:   tr.ActionCondition,
			Order:       tr.ActionOrder,
		})
	}

	for i, n := range rt.TableConstraints {
		var rc rawConstraint
		if err := reg.resolve(fmt.Sprintf("%s.table-constraints[%d]", path, i), n, &rc); err != nil {
			return nil, err
		}
		t.Constraints = append(t.Constraints, &Constraint{
			Name:       rc.Name,
			Type:       rc.ConstraintType,
			Definition: rc.Definition,
		})
	}

	return t, nil
}

// attachForeignKeys hands every foreign key to the table that owns its
// foreign column. The crawler lists a key under both tables, so keys are
// deduplicated by id.
func (s *RelationalSchema) attachForeignKeys(reg registry, tables []rawTable) error {
	seen := make(map[string]bool)
	for ti, rt := range tables {
		for i, n := range rt.ForeignKeys {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true

			path := fmt.Sprintf("catalog.tables[%d].foreign-keys[%d]", ti, i)
			var rf rawForeignKey
			if err := reg.resolve(path, n, &rf); err != nil {
				return err
			}
			if len(rf.ColumnReferences) == 0 {
				return malformed(path, "no column-references")
			}

			fk := &ForeignKey{
				ID:         n.ID,
				Name:       rf.Name,
				DeleteRule: rf.DeleteRule,
				UpdateRule: rf.UpdateRule,
			}
			for _, ref := range rf.ColumnReferences {
				if _, ok := s.columnTables[ref.ForeignKeyColumn]; !ok {
					return malformed(path, fmt.Sprintf("unknown foreign-key-column %q", ref.ForeignKeyColumn))
				}
				if _, ok := s.columnTables[ref.PrimaryKeyColumn]; !ok {
					return malformed(path, fmt.Sprintf("unknown primary-key-column %q", ref.PrimaryKeyColumn))
				}
				fk.References = append(fk.References, ColumnReference{
					Seq:             ref.KeySequence,
					ForeignColumnID: ref.ForeignKeyColumn,
					PrimaryColumnID: ref.PrimaryKeyColumn,
				})
			}
			sort.SliceStable(fk.References, func(a, b int) bool {
				return fk.References[a].Seq < fk.References[b].Seq
			})

			owner := s.columnTables[fk.Relation().ForeignColumnID]
			owner.ForeignKeys = append(owner.ForeignKeys, fk)
		}
	}
	return nil
}
