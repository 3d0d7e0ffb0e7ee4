// Package drivers holds the two store endpoints a migration talks to: the
// relational source (MySQL) and the document target (MongoDB). Callers see
// them only through the narrow RelationalStore and DocumentStore interfaces.
package drivers

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	DriverMySQL   string = "mysql"
	DriverMongoDB string = "mongodb"
)

var (
	// ErrStoreUnavailable marks connection level failures. Tasks that fail
	// with it may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConstraintViolation marks foreign key and integrity failures.
	ErrConstraintViolation = errors.New("constraint violation")
)

// PartialWriteError reports an unordered bulk insert where some documents
// were written and some were rejected.
type PartialWriteError struct {
	Collection string
	Inserted   int
	Failed     int
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write to %s: %d inserted, %d failed: %v", e.Collection, e.Inserted, e.Failed, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// Execer runs statements that return no rows.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

type RelationalStore interface {
	Execer
	Query(ctx context.Context, query string, args ...any) (*ResultSet, error)
	// QueryEach streams the rows of query to fn one at a time. Reading stops
	// at the first error fn returns, and that error is returned as is.
	QueryEach(ctx context.Context, query string, args []any, fn func(row []any) error) error
	// InTx runs fn inside one transaction. The transaction commits only when
	// fn returns nil.
	InTx(ctx context.Context, fn func(tx Execer) error) error
	// WithDatabase opens a second handle on the same server with a different
	// default database.
	WithDatabase(ctx context.Context, database string) (RelationalStore, error)
	// IndexTypes returns table name -> index name -> INDEX_TYPE for database.
	IndexTypes(ctx context.Context, database string) (map[string]map[string]string, error)
	// CompareColumns lists the column definitions of table that differ
	// between the two databases.
	CompareColumns(ctx context.Context, left, right, table string) ([]ColumnDelta, error)
	Database() string
	Close() error
}

// Update is one update-many operation of a bulk write.
type Update struct {
	Filter bson.D
	Update bson.D
}

type DocumentStore interface {
	Database() string
	CreateCollection(ctx context.Context, name string) error
	ApplyValidator(ctx context.Context, collection string, validator bson.D) error
	CreateIndex(ctx context.Context, collection, name string, keys bson.D, unique bool) error
	// BulkInsert writes docs with one unordered insert and returns the
	// number written.
	BulkInsert(ctx context.Context, collection string, docs []bson.D) (int, error)
	// BulkUpdateByFilter applies every update to all documents matching its
	// filter in one unordered bulk write.
	BulkUpdateByFilter(ctx context.Context, collection string, updates []Update) (matched, modified int64, err error)
	Find(ctx context.Context, collection string, filter, projection bson.D) ([]bson.D, error)
	InsertOne(ctx context.Context, collection string, doc any) error
	// ReplaceOne replaces the document matching filter, inserting it when
	// none matches.
	ReplaceOne(ctx context.Context, collection string, filter bson.D, doc any) error
	DropCollection(ctx context.Context, name string) error
	DropDatabase(ctx context.Context) error
	Close(ctx context.Context) error
}
