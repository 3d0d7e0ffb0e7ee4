package validate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sheenazien8/mysql2mongo/translate"
)

func ptr(s string) *string { return &s }

func TestColumnDefSQL(t *testing.T) {
	tests := []struct {
		name string
		def  translate.ColumnDef
		want string
	}{
		{
			name: "auto increment key",
			def:  translate.ColumnDef{Name: "id", Type: "int unsigned", AutoIncrement: true},
			want: "`id` int unsigned NOT NULL AUTO_INCREMENT",
		},
		{
			name: "string default gets delimiters",
			def: translate.ColumnDef{
				Name: "name", Type: "varchar(45)", Nullable: true, Default: ptr("anon"),
				LiteralPrefix: "'", LiteralSuffix: "'",
				CharacterSet: ptr("utf8mb4"), Collation: ptr("utf8mb4_bin"),
			},
			want: "`name` varchar(45) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin DEFAULT 'anon'",
		},
		{
			name: "quote inside default is escaped",
			def:  translate.ColumnDef{Name: "n", Type: "char(5)", Nullable: true, Default: ptr("it's"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`n` char(5) DEFAULT 'it''s'",
		},
		{
			name: "enum default is quoted",
			def:  translate.ColumnDef{Name: "rating", Type: "enum('G','PG')", Default: ptr("G")},
			want: "`rating` enum('G','PG') NOT NULL DEFAULT 'G'",
		},
		{
			name: "numeric default is bare",
			def:  translate.ColumnDef{Name: "pages", Type: "smallint unsigned", Default: ptr("0")},
			want: "`pages` smallint unsigned NOT NULL DEFAULT 0",
		},
		{
			name: "keyword default stays bare",
			def:  translate.ColumnDef{Name: "created_at", Type: "timestamp", Default: ptr("CURRENT_TIMESTAMP"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`created_at` timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP",
		},
		{
			name: "keyword default with precision",
			def:  translate.ColumnDef{Name: "created_at", Type: "datetime(6)", Default: ptr("CURRENT_TIMESTAMP(6)"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`created_at` datetime(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)",
		},
		{
			name: "lower case keyword call",
			def:  translate.ColumnDef{Name: "updated_at", Type: "timestamp", Default: ptr("current_timestamp()"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`updated_at` timestamp NOT NULL DEFAULT current_timestamp()",
		},
		{
			name: "now with precision",
			def:  translate.ColumnDef{Name: "seen_at", Type: "datetime(3)", Nullable: true, Default: ptr("now(3)"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`seen_at` datetime(3) DEFAULT now(3)",
		},
		{
			name: "function name without call is a string",
			def:  translate.ColumnDef{Name: "label", Type: "varchar(10)", Nullable: true, Default: ptr("now"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`label` varchar(10) DEFAULT 'now'",
		},
		{
			name: "call with text argument is a string",
			def:  translate.ColumnDef{Name: "label", Type: "varchar(20)", Nullable: true, Default: ptr("NOW(today)"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`label` varchar(20) DEFAULT 'NOW(today)'",
		},
		{
			name: "already delimited default",
			def:  translate.ColumnDef{Name: "code", Type: "char(2)", Nullable: true, Default: ptr("'XX'"), LiteralPrefix: "'", LiteralSuffix: "'"},
			want: "`code` char(2) DEFAULT 'XX'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColumnDefSQL(tt.def); got != tt.want {
				t.Errorf("ColumnDefSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateTableSQL(t *testing.T) {
	def := translate.TableDef{
		Name:   "author",
		Engine: "InnoDB",
		Columns: []translate.ColumnDef{
			{Name: "id", Type: "int", AutoIncrement: true},
			{Name: "name", Type: "varchar(45)"},
		},
		PrimaryKey: []string{"id"},
	}

	want := "CREATE TABLE `author` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `name` varchar(45) NOT NULL,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB"
	if diff := cmp.Diff(want, CreateTableSQL(def)); diff != "" {
		t.Errorf("CreateTableSQL() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddForeignKeysSQL(t *testing.T) {
	fks := []translate.ForeignKeyDef{
		{Name: "fk_a", Table: "book", Column: "author_id", RefTable: "author", RefColumn: "id", OnDelete: "RESTRICT", OnUpdate: "CASCADE"},
		{Name: "fk_b", Table: "book", Column: "editor_id", RefTable: "author", RefColumn: "id"},
	}

	want := "ALTER TABLE `book` ADD CONSTRAINT `fk_a` FOREIGN KEY (`author_id`) REFERENCES `author` (`id`) ON DELETE RESTRICT ON UPDATE CASCADE,\n" +
		"ADD CONSTRAINT `fk_b` FOREIGN KEY (`editor_id`) REFERENCES `author` (`id`)"
	if diff := cmp.Diff(want, AddForeignKeysSQL("book", fks)); diff != "" {
		t.Errorf("AddForeignKeysSQL() mismatch (-want +got):\n%s", diff)
	}
	if got := AddForeignKeysSQL("book", nil); got != "" {
		t.Errorf("AddForeignKeysSQL(nil) = %q", got)
	}
}

func TestCreateTriggerSQL(t *testing.T) {
	tr := translate.TriggerDef{
		Name: "book_ai", Table: "book", Timing: "AFTER", Event: "INSERT", Orientation: "ROW",
		Statement: "SET @books = @books + 1",
	}
	want := "CREATE TRIGGER `book_ai` AFTER INSERT ON `book` FOR EACH ROW SET @books = @books + 1"
	if got := CreateTriggerSQL(tr); got != want {
		t.Errorf("CreateTriggerSQL() = %q, want %q", got, want)
	}
}

func TestForeignKeysByTable(t *testing.T) {
	order, grouped := ForeignKeysByTable([]translate.ForeignKeyDef{
		{Name: "a", Table: "book"},
		{Name: "b", Table: "employee"},
		{Name: "c", Table: "book"},
	})
	if diff := cmp.Diff([]string{"book", "employee"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if len(grouped["book"]) != 2 || len(grouped["employee"]) != 1 {
		t.Errorf("grouped = %+v", grouped)
	}
}

func TestScript(t *testing.T) {
	rec := translate.Record{
		Tables: []translate.TableDef{
			{Name: "author", Engine: "InnoDB", Columns: []translate.ColumnDef{{Name: "id", Type: "int"}}, PrimaryKey: []string{"id"}},
		},
		ForeignKeys: []translate.ForeignKeyDef{
			{Name: "fk_a", Table: "book", Column: "author_id", RefTable: "author", RefColumn: "id"},
		},
		Triggers: []translate.TriggerDef{
			{Name: "trg", Table: "author", Timing: "BEFORE", Event: "INSERT", Statement: "SET NEW.id = NEW.id"},
		},
	}
	want := "CREATE TABLE `author` (\n  `id` int NOT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB;\n\n" +
		"ALTER TABLE `book` ADD CONSTRAINT `fk_a` FOREIGN KEY (`author_id`) REFERENCES `author` (`id`);\n\n" +
		"CREATE TRIGGER `trg` BEFORE INSERT ON `author` FOR EACH ROW SET NEW.id = NEW.id;\n"
	if diff := cmp.Diff(want, Script(rec)); diff != "" {
		t.Errorf("Script() mismatch (-want +got):\n%s", diff)
	}
	if got := Script(translate.Record{}); got != "" {
		t.Errorf("empty record rendered %q", got)
	}
}
