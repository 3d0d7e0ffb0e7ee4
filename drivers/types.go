package drivers

// ResultSet represents a fully read query result. Cells hold whatever the MySQL
// driver scanned: []byte, int64, uint64, float64, time.Time or nil.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// ColumnDelta represents one information_schema.columns row that exists in only one
// of two compared schemas.
type ColumnDelta struct {
	Schema     string `db:"table_schema" bson:"schema" json:"schema"`
	Name       string `db:"column_name" bson:"column_name" json:"column_name"`
	Position   int64  `db:"ordinal_position" bson:"ordinal_position" json:"ordinal_position"`
	DataType   string `db:"data_type" bson:"data_type" json:"data_type"`
	ColumnType string `db:"column_type" bson:"column_type" json:"column_type"`
}

