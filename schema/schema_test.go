package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func loadFixture(t *testing.T) *RelationalSchema {
	t.Helper()

	s, err := Load("testdata/library.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func TestParseLibrary(t *testing.T) {
	s := loadFixture(t)

	if s.Database != "library" {
		t.Errorf("Database = %q, want library", s.Database)
	}
	if s.ProductName != "MySQL" || s.ProductVersion != "8.0.35" {
		t.Errorf("product = %q %q", s.ProductName, s.ProductVersion)
	}

	var tables, views []string
	for _, tbl := range s.DataTables() {
		tables = append(tables, tbl.Name)
	}
	for _, v := range s.Views() {
		views = append(views, v.Name)
	}
	if diff := cmp.Diff([]string{"author", "book", "employee"}, tables); diff != "" {
		t.Errorf("DataTables() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"author_names"}, views); diff != "" {
		t.Errorf("Views() mismatch (-want +got):\n%s", diff)
	}
}

func TestPrimaryKeys(t *testing.T) {
	s := loadFixture(t)

	tests := []struct {
		table string
		want  []string
	}{
		{table: "author", want: []string{"id"}},
		{table: "book", want: []string{"id"}},
		{table: "employee", want: []string{"id"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			tbl, ok := s.Table(tt.table)
			if !ok {
				t.Fatalf("table %s not found", tt.table)
			}
			pk, ok := tbl.PrimaryKey()
			if !ok {
				t.Fatalf("%s has no primary key", tt.table)
			}
			if !pk.IsPrimary() {
				t.Errorf("primary key index named %q", pk.Name)
			}
			if diff := cmp.Diff(tt.want, s.ColumnNames(pk.ColumnIDs)); diff != "" {
				t.Errorf("primary key columns mismatch (-want +got):\n%s", diff)
			}
		})
	}

	view, _ := s.Table("author_names")
	if _, ok := view.PrimaryKey(); ok {
		t.Error("view should not have a primary key")
	}
}

func TestForeignKeysBelongToForeignColumnTable(t *testing.T) {
	s := loadFixture(t)

	author, _ := s.Table("author")
	if len(author.ForeignKeys) != 0 {
		t.Errorf("author has %d foreign keys, want 0", len(author.ForeignKeys))
	}

	book, _ := s.Table("book")
	if len(book.ForeignKeys) != 1 {
		t.Fatalf("book has %d foreign keys, want 1", len(book.ForeignKeys))
	}
	rel := book.ForeignKeys[0].Relation()
	fc, _ := s.Column(rel.ForeignColumnID)
	pc, _ := s.Column(rel.PrimaryColumnID)
	if fc.TableName != "book" || fc.Name != "author_id" {
		t.Errorf("foreign column = %s.%s", fc.TableName, fc.Name)
	}
	if pc.TableName != "author" || pc.Name != "id" {
		t.Errorf("primary column = %s.%s", pc.TableName, pc.Name)
	}

	owner, ok := s.TableOfColumn(rel.ForeignColumnID)
	if !ok || owner.Name != "book" {
		t.Errorf("TableOfColumn() = %v, want book", owner)
	}

	employee, _ := s.Table("employee")
	if len(employee.ForeignKeys) != 1 || employee.ForeignKeys[0].DeleteRule != "setNull" {
		t.Errorf("employee foreign keys = %+v", employee.ForeignKeys)
	}
}

func TestColumnAttributes(t *testing.T) {
	s := loadFixture(t)

	book, _ := s.Table("book")
	title, ok := book.Column("title")
	if !ok {
		t.Fatal("book.title missing")
	}
	if title.Type != "varchar(100)" || title.DataType != "VARCHAR" {
		t.Errorf("title type = %q / %q", title.Type, title.DataType)
	}
	if title.LiteralPrefix != "'" || title.LiteralSuffix != "'" {
		t.Errorf("title literal = %q %q", title.LiteralPrefix, title.LiteralSuffix)
	}
	if title.CharacterSet == nil || *title.CharacterSet != "utf8mb4" {
		t.Errorf("title charset = %v", title.CharacterSet)
	}

	cover, _ := book.Column("cover")
	if cover.CharacterSet != nil {
		t.Errorf("cover charset = %q, want nil", *cover.CharacterSet)
	}

	rating, _ := book.Column("rating")
	if rating.Default == nil || *rating.Default != "G" {
		t.Errorf("rating default = %v", rating.Default)
	}

	if len(book.Triggers) != 1 || book.Triggers[0].Timing != "after" || book.Triggers[0].Event != "insert" {
		t.Errorf("book triggers = %+v", book.Triggers)
	}

	var types []string
	for _, idx := range book.Indexes {
		types = append(types, idx.Type)
	}
	want := []string{"BTREE", "BTREE", "BTREE", "BTREE", "SPATIAL", "FULLTEXT"}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("index types mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "not json",
			doc:  `{"catalog":`,
		},
		{
			name: "missing catalog",
			doc:  `{"all-table-columns": []}`,
		},
		{
			name: "missing tables",
			doc:  `{"catalog": {"name": "x"}, "all-table-columns": []}`,
		},
		{
			name: "missing all-table-columns",
			doc:  `{"catalog": {"name": "x", "tables": []}}`,
		},
		{
			name: "missing column type",
			doc: `{"catalog": {"name": "x", "tables": []}, "all-table-columns": [
				{"@uuid": "c1", "name": "id", "short-name": "t.id", "attributes": {}, "column-data-type": {"@uuid": "d1", "name": "INT"}}
			]}`,
		},
		{
			name: "unresolved data type",
			doc: `{"catalog": {"name": "x", "tables": []}, "all-table-columns": [
				{"@uuid": "c1", "name": "id", "short-name": "t.id", "attributes": {"COLUMN_TYPE": "int"}, "column-data-type": "nope"}
			]}`,
		},
		{
			name: "unknown table column",
			doc: `{"catalog": {"name": "x", "tables": [
				{"@uuid": "t1", "name": "t", "columns": ["c9"], "indexes": [], "foreign-keys": [], "triggers": [], "table-constraints": []}
			]}, "all-table-columns": []}`,
		},
		{
			name: "primary key of another table",
			doc: `{"catalog": {"name": "x", "tables": [
				{"@uuid": "t1", "name": "a", "columns": ["c1"], "primary-key": "i1",
				 "indexes": [{"@uuid": "i1", "name": "PRIMARY", "unique": true, "columns": ["c1"]}]},
				{"@uuid": "t2", "name": "b", "columns": ["c2"], "primary-key": "i1", "indexes": []}
			]}, "all-table-columns": [
				{"@uuid": "c1", "name": "id", "short-name": "a.id", "attributes": {"COLUMN_TYPE": "int"}, "column-data-type": {"@uuid": "d1", "name": "INT"}},
				{"@uuid": "c2", "name": "id", "short-name": "b.id", "attributes": {"COLUMN_TYPE": "int"}, "column-data-type": "d1"}
			]}`,
		},
		{
			name: "foreign key to unknown column",
			doc: `{"catalog": {"name": "x", "tables": [
				{"@uuid": "t1", "name": "a", "columns": ["c1"], "foreign-keys": [
					{"@uuid": "f1", "name": "fk", "column-references": [{"key-sequence": 1, "foreign-key-column": "c1", "primary-key-column": "c7"}]}
				]}
			]}, "all-table-columns": [
				{"@uuid": "c1", "name": "id", "short-name": "a.id", "attributes": {"COLUMN_TYPE": "int"}, "column-data-type": {"@uuid": "d1", "name": "INT"}}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() error = nil, want malformed")
			}
			if !errors.Is(err, ErrMalformedSchema) {
				t.Errorf("Parse() error = %v, want ErrMalformedSchema", err)
			}
			var me *MalformedSchemaError
			if !errors.As(err, &me) {
				t.Errorf("Parse() error type = %T", err)
			}
		})
	}
}

func TestView(t *testing.T) {
	s := loadFixture(t)
	v := s.View()

	if v.Schema != "library" || v.DatabaseName != "MySQL" {
		t.Errorf("view header = %q %q", v.Schema, v.DatabaseName)
	}
	if len(v.Tables) != 4 {
		t.Fatalf("view has %d tables, want 4", len(v.Tables))
	}

	want := []ForeignKeyView{
		{
			Name:       "fk_book_author",
			DeleteRule: "restrict",
			UpdateRule: "cascade",
			ColumnReferences: []ColumnReferenceView{{
				KeySequence:      1,
				ForeignKeyColumn: "author_id",
				ForeignKeyTable:  "book",
				PrimaryKeyColumn: "id",
				PrimaryKeyTable:  "author",
			}},
		},
		{
			Name:       "fk_employee_manager",
			DeleteRule: "setNull",
			UpdateRule: "noAction",
			ColumnReferences: []ColumnReferenceView{{
				KeySequence:      1,
				ForeignKeyColumn: "manager_id",
				ForeignKeyTable:  "employee",
				PrimaryKeyColumn: "id",
				PrimaryKeyTable:  "employee",
			}},
		},
	}
	if diff := cmp.Diff(want, v.ForeignKeys); diff != "" {
		t.Errorf("view foreign keys mismatch (-want +got):\n%s", diff)
	}

	book := v.Tables[1]
	if len(book.Indexes) != 6 || len(book.Indexes[3].Columns) != 2 {
		t.Errorf("book index view = %+v", book.Indexes)
	}
}
