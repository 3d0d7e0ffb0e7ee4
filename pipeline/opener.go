package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/sheenazien8/mysql2mongo/drivers"
)

// URLOpener opens MySQL and MongoDB from connection URLs.
type URLOpener struct {
	MySQL string
	Mongo string
	// Database names the MongoDB database. Empty uses the one in Mongo.
	Database string
}

func (o URLOpener) OpenRelational(ctx context.Context) (drivers.RelationalStore, error) {
	db, err := drivers.OpenMySQL(ctx, o.MySQL)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (o URLOpener) OpenDocument(ctx context.Context) (drivers.DocumentStore, error) {
	db, err := drivers.OpenMongoDB(ctx, o.Mongo, o.Database)
	if err != nil {
		return nil, err
	}
	return db, nil
}

type counter struct {
	n atomic.Int64
}

func (c *counter) inc() int {
	return int(c.n.Add(1))
}
