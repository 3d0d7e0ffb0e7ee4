package drivertest

import (
	"context"
	"sync"

	"github.com/sheenazien8/mysql2mongo/drivers"
)

// Statement is one recorded Exec call.
type Statement struct {
	Database string
	Query    string
	Args     []any
	InTx     bool
}

// RelationalStore records statements and answers queries through
// Responder. It never interprets SQL.
type RelationalStore struct {
	mu sync.Mutex

	Name       string
	Statements []*Statement
	Committed  int
	RolledBack int
	Closed     bool

	// Responder answers Query. A nil Responder returns an empty result.
	Responder func(query string, args []any) (*drivers.ResultSet, error)
	// ExecErr fails matching Exec calls.
	ExecErr func(query string) error

	IndexTypeMap map[string]map[string]string
	ColumnDeltas map[string][]drivers.ColumnDelta

	parent *RelationalStore
}

var _ drivers.RelationalStore = (*RelationalStore)(nil)

func NewRelationalStore(name string) *RelationalStore {
	return &RelationalStore{Name: name}
}

func (s *RelationalStore) root() *RelationalStore {
	if s.parent != nil {
		return s.parent
	}
	return s
}

func (s *RelationalStore) Database() string { return s.Name }

func (s *RelationalStore) Exec(_ context.Context, query string, args ...any) (int64, error) {
	return s.record(query, args, false)
}

func (s *RelationalStore) record(query string, args []any, inTx bool) (int64, error) {
	r := s.root()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ExecErr != nil {
		if err := r.ExecErr(query); err != nil {
			return 0, err
		}
	}
	r.Statements = append(r.Statements, &Statement{Database: s.Name, Query: query, Args: args, InTx: inTx})
	return 1, nil
}

func (s *RelationalStore) Query(_ context.Context, query string, args ...any) (*drivers.ResultSet, error) {
	r := s.root()
	r.mu.Lock()
	responder := r.Responder
	r.mu.Unlock()

	if responder == nil {
		return &drivers.ResultSet{}, nil
	}
	return responder(query, args)
}

func (s *RelationalStore) QueryEach(ctx context.Context, query string, args []any, fn func(row []any) error) error {
	rs, err := s.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	for _, row := range rs.Rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

type txRecorder struct {
	store   *RelationalStore
	pending []*Statement
}

func (t *txRecorder) Exec(_ context.Context, query string, args ...any) (int64, error) {
	r := t.store.root()
	r.mu.Lock()
	execErr := r.ExecErr
	r.mu.Unlock()
	if execErr != nil {
		if err := execErr(query); err != nil {
			return 0, err
		}
	}
	t.pending = append(t.pending, &Statement{Database: t.store.Name, Query: query, Args: args, InTx: true})
	return 1, nil
}

// InTx keeps statements of a failed transaction out of Statements.
func (s *RelationalStore) InTx(_ context.Context, fn func(tx drivers.Execer) error) error {
	tx := &txRecorder{store: s}
	err := fn(tx)

	r := s.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.RolledBack++
		return err
	}
	r.Committed++
	r.Statements = append(r.Statements, tx.pending...)
	return nil
}

func (s *RelationalStore) WithDatabase(_ context.Context, database string) (drivers.RelationalStore, error) {
	return &RelationalStore{Name: database, parent: s.root()}, nil
}

func (s *RelationalStore) IndexTypes(_ context.Context, database string) (map[string]map[string]string, error) {
	r := s.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.IndexTypeMap, nil
}

func (s *RelationalStore) CompareColumns(_ context.Context, left, right, table string) ([]drivers.ColumnDelta, error) {
	r := s.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ColumnDeltas[table], nil
}

func (s *RelationalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Executed returns the recorded queries in order.
func (s *RelationalStore) Executed() []string {
	r := s.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Statements))
	for i, st := range r.Statements {
		out[i] = st.Query
	}
	return out
}
