// Package typemap maps MySQL column types to MongoDB field types and converts
// cell values in both directions.
package typemap

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type Kind string

const (
	KindInteger   Kind = "integer"
	KindDecimal   Kind = "decimal"
	KindDouble    Kind = "double"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindTimestamp Kind = "timestamp"
	KindBinary    Kind = "binary"
	KindBlob      Kind = "blob"
	KindString    Kind = "string"
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindGeometry  Kind = "geometry"
)

// DocumentType is the document-side type of a relational column.
type DocumentType struct {
	Kind     Kind
	Keyword  string
	Unsigned bool
}

var (
	ErrUnmappedType = errors.New("unmapped relational type")
	ErrNestedObject = errors.New("nested object has no relational representation")
)

type UnmappedTypeError struct {
	Table  string
	Column string
	Type   string
}

func (e *UnmappedTypeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s %q", ErrUnmappedType, e.Type)
	}
	return fmt.Sprintf("%s %q for column %s.%s", ErrUnmappedType, e.Type, e.Table, e.Column)
}

func (e *UnmappedTypeError) Is(target error) bool {
	return target == ErrUnmappedType
}

var keywords = map[string]Kind{
	"TINYINT":   KindInteger,
	"SMALLINT":  KindInteger,
	"MEDIUMINT": KindInteger,
	"INT":       KindInteger,
	"INTEGER":   KindInteger,
	"BIGINT":    KindInteger,

	"DECIMAL": KindDecimal,
	"DEC":     KindDecimal,
	"FIXED":   KindDecimal,
	"NUMERIC": KindDecimal,

	"FLOAT":  KindDouble,
	"DOUBLE": KindDouble,
	"REAL":   KindDouble,

	"BOOL":    KindBoolean,
	"BOOLEAN": KindBoolean,

	"DATE": KindDate,
	"YEAR": KindDate,

	"DATETIME":  KindTimestamp,
	"TIMESTAMP": KindTimestamp,
	"TIME":      KindTimestamp,

	"BIT":       KindBinary,
	"BINARY":    KindBinary,
	"VARBINARY": KindBinary,

	"TINYBLOB":   KindBlob,
	"BLOB":       KindBlob,
	"MEDIUMBLOB": KindBlob,
	"LONGBLOB":   KindBlob,

	"CHARACTER":  KindString,
	"CHARSET":    KindString,
	"ASCII":      KindString,
	"UNICODE":    KindString,
	"CHAR":       KindString,
	"VARCHAR":    KindString,
	"TINYTEXT":   KindString,
	"TEXT":       KindString,
	"MEDIUMTEXT": KindString,
	"LONGTEXT":   KindString,

	"ENUM": KindObject,
	"JSON": KindObject,
	"SET":  KindArray,

	"GEOMETRY":           KindGeometry,
	"POINT":              KindGeometry,
	"LINESTRING":         KindGeometry,
	"POLYGON":            KindGeometry,
	"MULTIPOINT":         KindGeometry,
	"MULTILINESTRING":    KindGeometry,
	"MULTIPOLYGON":       KindGeometry,
	"GEOMETRYCOLLECTION": KindGeometry,
	"GEOMCOLLECTION":     KindGeometry,
}

// Keyword returns the uppercased leading keyword of a type string:
// "int unsigned" and "INT UNSIGNED" give INT, "varchar(45)" gives VARCHAR.
func Keyword(relationalType string) string {
	s := strings.TrimSpace(relationalType)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToUpper(s)
}

// ToDocumentType looks the type up by its leading keyword. Types without an
// entry return an *UnmappedTypeError.
func ToDocumentType(relationalType string) (DocumentType, error) {
	kw := Keyword(relationalType)
	kind, ok := keywords[kw]
	if !ok {
		return DocumentType{}, &UnmappedTypeError{Type: relationalType}
	}
	return DocumentType{
		Kind:     kind,
		Keyword:  kw,
		Unsigned: strings.Contains(strings.ToLower(relationalType), "unsigned"),
	}, nil
}

// BSONType is the $jsonSchema bsonType a validator requires for the column.
// ENUM columns return "" because they are constrained by value instead.
func (d DocumentType) BSONType() string {
	switch d.Kind {
	case KindInteger:
		if d.unbounded() {
			return "decimal"
		}
		if d.wide() {
			return "long"
		}
		return "int"
	case KindDecimal:
		return "decimal"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "bool"
	case KindDate:
		if d.Keyword == "YEAR" {
			return "int"
		}
		return "date"
	case KindTimestamp:
		if d.Keyword == "TIME" {
			return "string"
		}
		return "date"
	case KindBinary, KindBlob:
		return "binData"
	case KindArray:
		return "array"
	case KindObject:
		if d.Keyword == "ENUM" {
			return ""
		}
		return "string"
	default:
		return "string"
	}
}

// wide reports whether integer values need 64 bits.
func (d DocumentType) wide() bool {
	switch d.Keyword {
	case "BIGINT":
		return true
	case "INT", "INTEGER":
		return d.Unsigned
	}
	return false
}

// unbounded reports whether values can exceed int64 and are stored as
// decimals.
func (d DocumentType) unbounded() bool {
	return d.Keyword == "BIGINT" && d.Unsigned
}

// IsGeometry reports whether the type is read as WKT and written back through
// ST_GeomFromText.
func IsGeometry(relationalType string) bool {
	return keywords[Keyword(relationalType)] == KindGeometry
}

// EnumValues parses the literals of an enum(...) or set(...) type string.
func EnumValues(relationalType string) []string {
	start := strings.Index(relationalType, "(")
	end := strings.LastIndex(relationalType, ")")
	if start < 0 || end <= start {
		return nil
	}
	body := relationalType[start+1 : end]

	var (
		values  []string
		cur     strings.Builder
		inQuote bool
	)
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case inQuote && ch == '\\' && i+1 < len(body):
			i++
			cur.WriteByte(body[i])
		case inQuote && ch == '\'' && i+1 < len(body) && body[i+1] == '\'':
			cur.WriteByte('\'')
			i++
		case ch == '\'':
			inQuote = !inQuote
		case !inQuote && ch == ',':
			values = append(values, cur.String())
			cur.Reset()
		case inQuote:
			cur.WriteByte(ch)
		}
	}
	values = append(values, cur.String())
	return values
}

// Annotate attaches the table and column a conversion error happened on.
func Annotate(err error, table, column string) error {
	if err == nil {
		return nil
	}
	var ue *UnmappedTypeError
	if errors.As(err, &ue) {
		return &UnmappedTypeError{Table: table, Column: column, Type: ue.Type}
	}
	return fmt.Errorf("column %s.%s: %w", table, column, err)
}
