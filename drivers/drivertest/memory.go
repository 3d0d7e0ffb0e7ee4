// Package drivertest provides in-memory stores for tests of code that talks
// to drivers.RelationalStore and drivers.DocumentStore.
package drivertest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sheenazien8/mysql2mongo/drivers"
)

type Index struct {
	Name   string
	Keys   bson.D
	Unique bool
}

// DocumentStore keeps collections in memory. Filters support top-level
// equality only and updates support $set only.
type DocumentStore struct {
	mu sync.Mutex

	Name        string
	Collections map[string][]bson.D
	Validators  map[string]bson.D
	Indexes     map[string][]Index
	Dropped     []string
	Closed      bool
	// BulkUpdates counts BulkUpdateByFilter calls.
	BulkUpdates int

	// Fail returns an error for an operation ("insert", "update", "find",
	// "validator", "index", "create", "drop") on a collection.
	Fail func(op, collection string) error
}

var _ drivers.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(name string) *DocumentStore {
	return &DocumentStore{
		Name:        name,
		Collections: make(map[string][]bson.D),
		Validators:  make(map[string]bson.D),
		Indexes:     make(map[string][]Index),
	}
}

func (s *DocumentStore) fail(op, collection string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, collection)
}

func (s *DocumentStore) Database() string { return s.Name }

func (s *DocumentStore) CreateCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("create", name); err != nil {
		return err
	}
	if _, ok := s.Collections[name]; !ok {
		s.Collections[name] = []bson.D{}
	}
	return nil
}

func (s *DocumentStore) ApplyValidator(_ context.Context, collection string, validator bson.D) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("validator", collection); err != nil {
		return err
	}
	if _, ok := s.Collections[collection]; !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	s.Validators[collection] = validator
	return nil
}

func (s *DocumentStore) CreateIndex(_ context.Context, collection, name string, keys bson.D, unique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("index", collection); err != nil {
		return err
	}
	s.Indexes[collection] = append(s.Indexes[collection], Index{Name: name, Keys: keys, Unique: unique})
	return nil
}

func (s *DocumentStore) BulkInsert(_ context.Context, collection string, docs []bson.D) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert", collection); err != nil {
		return 0, err
	}
	for _, d := range docs {
		s.Collections[collection] = append(s.Collections[collection], withID(d))
	}
	return len(docs), nil
}

func (s *DocumentStore) BulkUpdateByFilter(_ context.Context, collection string, updates []drivers.Update) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("update", collection); err != nil {
		return 0, 0, err
	}
	s.BulkUpdates++

	var matched, modified int64
	for _, u := range updates {
		set, err := setFields(u.Update)
		if err != nil {
			return matched, modified, err
		}
		docs := s.Collections[collection]
		for i, d := range docs {
			if !matches(d, u.Filter) {
				continue
			}
			matched++
			changed := false
			for _, e := range set {
				if old, ok := lookup(d, e.Key); ok && reflect.DeepEqual(old, e.Value) {
					continue
				}
				d = setField(d, e.Key, e.Value)
				changed = true
			}
			if changed {
				modified++
				docs[i] = d
			}
		}
	}
	return matched, modified, nil
}

// setFields flattens the $set operators of update.
func setFields(update bson.D) (bson.D, error) {
	var set bson.D
	for _, e := range update {
		if e.Key != "$set" {
			return nil, fmt.Errorf("unsupported update operator %s", e.Key)
		}
		d, ok := e.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("$set value must be bson.D, got %T", e.Value)
		}
		set = append(set, d...)
	}
	return set, nil
}

func (s *DocumentStore) Find(_ context.Context, collection string, filter, projection bson.D) ([]bson.D, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("find", collection); err != nil {
		return nil, err
	}

	var out []bson.D
	for _, d := range s.Collections[collection] {
		if !matches(d, filter) {
			continue
		}
		out = append(out, project(d, projection))
	}
	return out, nil
}

func (s *DocumentStore) InsertOne(_ context.Context, collection string, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert", collection); err != nil {
		return err
	}
	d, err := toD(doc)
	if err != nil {
		return err
	}
	s.Collections[collection] = append(s.Collections[collection], withID(d))
	return nil
}

func (s *DocumentStore) ReplaceOne(_ context.Context, collection string, filter bson.D, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert", collection); err != nil {
		return err
	}
	d, err := toD(doc)
	if err != nil {
		return err
	}
	docs := s.Collections[collection]
	for i, existing := range docs {
		if matches(existing, filter) {
			if id, ok := lookup(existing, "_id"); ok {
				d = setField(d, "_id", id)
			}
			docs[i] = d
			return nil
		}
	}
	s.Collections[collection] = append(docs, withID(d))
	return nil
}

func (s *DocumentStore) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("drop", name); err != nil {
		return err
	}
	delete(s.Collections, name)
	delete(s.Validators, name)
	delete(s.Indexes, name)
	s.Dropped = append(s.Dropped, name)
	return nil
}

func (s *DocumentStore) DropDatabase(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Collections = make(map[string][]bson.D)
	s.Validators = make(map[string]bson.D)
	s.Indexes = make(map[string][]Index)
	return nil
}

func (s *DocumentStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Documents returns a copy of the collection.
func (s *DocumentStore) Documents(collection string) []bson.D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bson.D(nil), s.Collections[collection]...)
}

func withID(d bson.D) bson.D {
	if _, ok := lookup(d, "_id"); ok {
		return d
	}
	return append(bson.D{{Key: "_id", Value: primitive.NewObjectID()}}, d...)
}

func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func setField(d bson.D, key string, value any) bson.D {
	out := append(bson.D(nil), d...)
	for i, e := range out {
		if e.Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, bson.E{Key: key, Value: value})
}

func matches(d, filter bson.D) bool {
	for _, f := range filter {
		v, ok := lookup(d, f.Key)
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

func project(d, projection bson.D) bson.D {
	if len(projection) == 0 {
		return append(bson.D(nil), d...)
	}
	keep := map[string]bool{"_id": true}
	for _, p := range projection {
		keep[p.Key] = p.Value != 0
	}
	var out bson.D
	for _, e := range d {
		if keep[e.Key] {
			out = append(out, e)
		}
	}
	return out
}

func toD(doc any) (bson.D, error) {
	if d, ok := doc.(bson.D); ok {
		return d, nil
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}
