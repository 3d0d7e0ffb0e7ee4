package validate

import (
	"fmt"
	"strings"

	"github.com/sheenazien8/mysql2mongo/translate"
)

// defaultKeywords are default expressions written bare even when the column
// type has literal delimiters. They may carry a precision, as in
// CURRENT_TIMESTAMP(6). A true value means the call parentheses are required.
var defaultKeywords = map[string]bool{
	"NULL":              false,
	"CURRENT_TIMESTAMP": false,
	"CURRENT_DATE":      false,
	"CURRENT_TIME":      false,
	"LOCALTIME":         false,
	"LOCALTIMESTAMP":    false,
	"NOW":               true,
	"CURDATE":           true,
	"CURTIME":           true,
	"UTC_TIMESTAMP":     true,
	"SYSDATE":           true,
}

// isDefaultKeyword reports whether v is a default expression such as NULL,
// current_timestamp() or NOW(3).
func isDefaultKeyword(v string) bool {
	v = strings.TrimSpace(v)
	name, call := v, false
	if i := strings.IndexByte(v, '('); i != -1 {
		if !strings.HasSuffix(v, ")") {
			return false
		}
		args := strings.TrimSpace(v[i+1 : len(v)-1])
		if strings.Trim(args, "0123456789") != "" {
			return false
		}
		name, call = strings.TrimSpace(v[:i]), true
	}
	needsCall, ok := defaultKeywords[strings.ToUpper(name)]
	if !ok || (call && strings.EqualFold(name, "NULL")) {
		return false
	}
	return call || !needsCall
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// CreateTableSQL renders the table with its columns and primary key only.
// Foreign keys are added once every table holds its data.
func CreateTableSQL(def translate.TableDef) string {
	parts := make([]string, 0, len(def.Columns)+1)
	for _, c := range def.Columns {
		parts = append(parts, "  "+ColumnDefSQL(c))
	}
	if len(def.PrimaryKey) > 0 {
		parts = append(parts, "  PRIMARY KEY ("+quoteIdents(def.PrimaryKey)+")")
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(def.Name))
	b.WriteString(" (\n")
	b.WriteString(strings.Join(parts, ",\n"))
	b.WriteString("\n)")
	if def.Engine != "" {
		b.WriteString(" ENGINE=")
		b.WriteString(def.Engine)
	}
	return b.String()
}

// ColumnDefSQL renders one column definition:
// name type [CHARACTER SET x] [COLLATE y] [NOT NULL] [DEFAULT v] [AUTO_INCREMENT].
func ColumnDefSQL(c translate.ColumnDef) string {
	parts := []string{quoteIdent(c.Name), c.Type}
	if c.CharacterSet != nil && *c.CharacterSet != "" {
		parts = append(parts, "CHARACTER SET "+*c.CharacterSet)
	}
	if c.Collation != nil && *c.Collation != "" {
		parts = append(parts, "COLLATE "+*c.Collation)
	}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+defaultLiteral(c))
	}
	if c.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	return strings.Join(parts, " ")
}

func defaultLiteral(c translate.ColumnDef) string {
	v := *c.Default
	if isDefaultKeyword(v) {
		return v
	}

	lower := strings.ToLower(c.Type)
	if strings.HasPrefix(lower, "enum") || strings.HasPrefix(lower, "set") {
		return quoteString(strings.Trim(v, "'"))
	}
	if c.LiteralPrefix == "" && c.LiteralSuffix == "" {
		return v
	}
	if strings.HasPrefix(v, c.LiteralPrefix) && strings.HasSuffix(v, c.LiteralSuffix) && len(v) >= len(c.LiteralPrefix)+len(c.LiteralSuffix) {
		return v
	}
	if c.LiteralPrefix == "'" && c.LiteralSuffix == "'" {
		return quoteString(v)
	}
	return c.LiteralPrefix + v + c.LiteralSuffix
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// AddForeignKeysSQL renders one ALTER TABLE adding every constraint of
// table. It returns "" when fks is empty.
func AddForeignKeysSQL(table string, fks []translate.ForeignKeyDef) string {
	if len(fks) == 0 {
		return ""
	}
	clauses := make([]string, len(fks))
	for i, fk := range fks {
		clause := fmt.Sprintf("ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdent(fk.Name), quoteIdent(fk.Column), quoteIdent(fk.RefTable), quoteIdent(fk.RefColumn))
		if fk.OnDelete != "" {
			clause += " ON DELETE " + fk.OnDelete
		}
		if fk.OnUpdate != "" {
			clause += " ON UPDATE " + fk.OnUpdate
		}
		clauses[i] = clause
	}
	return "ALTER TABLE " + quoteIdent(table) + " " + strings.Join(clauses, ",\n")
}

func CreateTriggerSQL(tr translate.TriggerDef) string {
	orientation := tr.Orientation
	if orientation == "" {
		orientation = "ROW"
	}
	return fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s FOR EACH %s %s",
		quoteIdent(tr.Name), tr.Timing, tr.Event, quoteIdent(tr.Table), orientation, tr.Statement)
}

// ForeignKeysByTable groups fks by owning table, keeping first-seen order.
func ForeignKeysByTable(fks []translate.ForeignKeyDef) ([]string, map[string][]translate.ForeignKeyDef) {
	var order []string
	grouped := map[string][]translate.ForeignKeyDef{}
	for _, fk := range fks {
		if _, ok := grouped[fk.Table]; !ok {
			order = append(order, fk.Table)
		}
		grouped[fk.Table] = append(grouped[fk.Table], fk)
	}
	return order, grouped
}

// Script renders rec as the statement sequence the validation database is
// built with: tables, then foreign keys, then triggers.
func Script(rec translate.Record) string {
	var stmts []string
	for _, def := range rec.Tables {
		stmts = append(stmts, CreateTableSQL(def))
	}
	order, grouped := ForeignKeysByTable(rec.ForeignKeys)
	for _, table := range order {
		stmts = append(stmts, AddForeignKeysSQL(table, grouped[table]))
	}
	for _, tr := range rec.Triggers {
		stmts = append(stmts, CreateTriggerSQL(tr))
	}
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";\n"
}
