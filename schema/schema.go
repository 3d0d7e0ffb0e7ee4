// Package schema turns the document written by the external schema crawler
// into an immutable RelationalSchema. The schema is built once per run and
// shared by pointer; nothing mutates it after Parse returns.
package schema

import (
	"strings"
)

// Kind classifies catalog entries. Only KindTable entries carry data.
type Kind string

const (
	KindTable Kind = "TABLE"
	KindView  Kind = "VIEW"
)

// PrimaryIndexName is the name MySQL gives the primary key index.
const PrimaryIndexName = "PRIMARY"

type RelationalSchema struct {
	Database       string
	ProductName    string
	ProductVersion string
	Tables         []*Table

	// Raw is the untouched introspection document.
	Raw []byte

	columns      map[string]*Column
	columnTables map[string]*Table
	tablesByName map[string]*Table
	indexes      map[string]*Index
}

type Table struct {
	ID           string
	Name         string
	Engine       string
	Collation    string
	Kind         Kind
	Columns      []*Column
	Indexes      []*Index
	ForeignKeys  []*ForeignKey
	Triggers     []*Trigger
	Constraints  []*Constraint
	PrimaryKeyID string
}

type Column struct {
	ID        string
	Name      string
	TableName string
	// Type is the full column type as MySQL reports it, e.g. "varchar(45)" or
	// "enum('G','PG')".
	Type string
	// DataType is the crawler's type name, e.g. "INT UNSIGNED".
	DataType      string
	Width         string
	Nullable      bool
	AutoIncrement bool
	Default       *string
	LiteralPrefix string
	LiteralSuffix string
	CharacterSet  *string
	Collation     *string
}

type Index struct {
	ID        string
	Name      string
	TableName string
	ColumnIDs []string
	Unique    bool
	// Type is the index implementation (BTREE, HASH, SPATIAL, FULLTEXT) when
	// the document carries it. Empty otherwise.
	Type string
}

type ColumnReference struct {
	Seq             int
	ForeignColumnID string
	PrimaryColumnID string
}

type ForeignKey struct {
	ID         string
	Name       string
	References []ColumnReference
	DeleteRule string
	UpdateRule string
}

type Trigger struct {
	ID          string
	TableName   string
	Name        string
	Timing      string
	Event       string
	Orientation string
	Statement   string
	Condition   string
	Order       int
}

type Constraint struct {
	Name       string
	Type       string
	Definition string
}

// Column returns the column with the given schema-wide id.
func (s *RelationalSchema) Column(id string) (*Column, bool) {
	c, ok := s.columns[id]
	return c, ok
}

// TableOfColumn returns the table owning the column id.
func (s *RelationalSchema) TableOfColumn(id string) (*Table, bool) {
	t, ok := s.columnTables[id]
	return t, ok
}

// Table looks a table or view up by name.
func (s *RelationalSchema) Table(name string) (*Table, bool) {
	t, ok := s.tablesByName[name]
	return t, ok
}

// Index returns the index with the given id.
func (s *RelationalSchema) Index(id string) (*Index, bool) {
	i, ok := s.indexes[id]
	return i, ok
}

// DataTables returns the TABLE kind entries in catalog order.
func (s *RelationalSchema) DataTables() []*Table {
	var tables []*Table
	for _, t := range s.Tables {
		if t.Kind == KindTable {
			tables = append(tables, t)
		}
	}
	return tables
}

// Views returns the VIEW kind entries in catalog order.
func (s *RelationalSchema) Views() []*Table {
	var views []*Table
	for _, t := range s.Tables {
		if t.Kind == KindView {
			views = append(views, t)
		}
	}
	return views
}

// ColumnNames resolves a list of column ids to names.
func (s *RelationalSchema) ColumnNames(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.columns[id]; ok {
			names = append(names, c.Name)
		}
	}
	return names
}

// PrimaryKey returns the table's primary key index, if it has one.
func (t *Table) PrimaryKey() (*Index, bool) {
	if t.PrimaryKeyID == "" {
		return nil, false
	}
	for _, idx := range t.Indexes {
		if idx.ID == t.PrimaryKeyID {
			return idx, true
		}
	}
	return nil, false
}

// Column looks a column up by name within the table.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IsPrimary reports whether the index is the table's primary key.
func (i *Index) IsPrimary() bool {
	return strings.EqualFold(i.Name, PrimaryIndexName)
}

// Relation returns the first column pair, the one the migrator treats as the
// effective single-column relation.
func (fk *ForeignKey) Relation() ColumnReference {
	if len(fk.References) == 0 {
		return ColumnReference{}
	}
	return fk.References[0]
}
