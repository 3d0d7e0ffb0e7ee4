package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/drivers"
	"github.com/sheenazien8/mysql2mongo/drivers/drivertest"
	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/typemap"
	"github.com/sheenazien8/mysql2mongo/validate"
)

const fixture = "../schema/testdata/library.json"

type fakeOpener struct {
	rel    *drivertest.RelationalStore
	docs   *drivertest.DocumentStore
	relErr error
}

func (o *fakeOpener) OpenRelational(context.Context) (drivers.RelationalStore, error) {
	if o.relErr != nil {
		return nil, o.relErr
	}
	return o.rel, nil
}

func (o *fakeOpener) OpenDocument(context.Context) (drivers.DocumentStore, error) {
	return o.docs, nil
}

func loadDoc(t *testing.T) []byte {
	t.Helper()

	data, err := os.ReadFile(fixture)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// row lays values out in column order, leaving every other cell NULL.
func row(tbl *schema.Table, values map[string]any) []any {
	out := make([]any, len(tbl.Columns))
	for i, c := range tbl.Columns {
		out[i] = values[c.Name]
	}
	return out
}

// librarySource answers the forward projections with two authors and three
// books, and reports no differences to diff queries.
func librarySource(t *testing.T, doc []byte) *drivertest.RelationalStore {
	t.Helper()

	s, err := schema.Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	author, _ := s.Table("author")
	book, _ := s.Table("book")

	rel := drivertest.NewRelationalStore("library")
	rel.Responder = func(query string, _ []any) (*drivers.ResultSet, error) {
		switch {
		case strings.Contains(query, "UNION ALL"):
			return &drivers.ResultSet{}, nil
		case strings.Contains(query, "FROM `library`.`author`"):
			return &drivers.ResultSet{Columns: author.ColumnNames(), Rows: [][]any{
				row(author, map[string]any{"id": int64(1), "name": []byte("Borges")}),
				row(author, map[string]any{"id": int64(2), "name": []byte("Calvino")}),
			}}, nil
		case strings.Contains(query, "FROM `library`.`book`"):
			return &drivers.ResultSet{Columns: book.ColumnNames(), Rows: [][]any{
				row(book, map[string]any{"id": int64(10), "author_id": int64(1), "title": []byte("Ficciones")}),
				row(book, map[string]any{"id": int64(11), "author_id": int64(1), "title": []byte("El Aleph")}),
				row(book, map[string]any{"id": int64(12), "author_id": int64(2), "title": []byte("Le citta invisibili")}),
			}}, nil
		}
		return &drivers.ResultSet{}, nil
	}
	return rel
}

func zeroBackoff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestRunAuthorBook(t *testing.T) {
	doc := loadDoc(t)
	opener := &fakeOpener{rel: librarySource(t, doc), docs: drivertest.NewDocumentStore("library")}

	var mu sync.Mutex
	var events []Event
	p := New(opener, doc, Options{
		Workers:  2,
		Retries:  2,
		Validate: true,
		Backoff:  zeroBackoff,
		Progress: func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status() != "succeeded" {
		t.Errorf("Status() = %s, failed = %v", report.Status(), report.FailedTables())
	}

	var names []string
	for _, tr := range report.Tables {
		names = append(names, tr.Table)
	}
	if diff := cmp.Diff([]string{"author", "book", "employee"}, names); diff != "" {
		t.Errorf("report tables mismatch (-want +got):\n%s", diff)
	}

	var phases []string
	for _, ph := range report.Phases {
		phases = append(phases, ph.Phase)
	}
	if diff := cmp.Diff([]string{StageTranslate, StageForward, StageReference, StageValidate}, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}

	docs := opener.docs
	authors := docs.Documents("author")
	books := docs.Documents("book")
	if len(authors) != 2 || len(books) != 3 {
		t.Fatalf("authors = %d, books = %d", len(authors), len(books))
	}

	authorIDs := map[int32]any{}
	for _, a := range authors {
		id, _ := lookup(a, "id")
		oid, _ := lookup(a, "_id")
		authorIDs[id.(int32)] = oid
	}
	for _, b := range books {
		fk, _ := lookup(b, "author_id")
		ref, ok := lookup(b, "db_ref_author_id")
		if !ok {
			t.Errorf("book %v has no reference", b)
			continue
		}
		want := bson.D{
			{Key: "$ref", Value: "author"},
			{Key: "$id", Value: authorIDs[fk.(int32)]},
			{Key: "$db", Value: "library"},
		}
		if diff := cmp.Diff(want, ref); diff != "" {
			t.Errorf("reference mismatch (-want +got):\n%s", diff)
		}
	}

	if _, ok := docs.Validators["book"]; !ok {
		t.Error("book validator missing")
	}
	if _, ok := docs.Collections["author_names"]; ok {
		t.Error("view collection survived translation")
	}
	if n := len(docs.Documents(validate.LogCollection)); n != 3 {
		t.Errorf("validating_log has %d records", n)
	}
	for _, tr := range report.Tables {
		if tr.Diff == nil || !tr.Diff.Clean() {
			t.Errorf("%s diff = %+v", tr.Table, tr.Diff)
		}
	}

	forward := 0
	for _, ev := range events {
		if ev.Phase == StageForward {
			forward++
		}
	}
	if forward != 3 {
		t.Errorf("%d forward events, want 3", forward)
	}
}

func TestRunIsolatesUnmappedTable(t *testing.T) {
	doc := bytes.Replace(loadDoc(t), []byte(`"COLUMN_TYPE": "varchar(100)"`), []byte(`"COLUMN_TYPE": "vector(3)"`), 1)
	opener := &fakeOpener{rel: librarySource(t, doc), docs: drivertest.NewDocumentStore("library")}

	report, err := New(opener, doc, Options{Workers: 3, Retries: 3, Backoff: zeroBackoff}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status() != "partial" {
		t.Errorf("Status() = %s", report.Status())
	}
	if diff := cmp.Diff([]string{"book"}, report.FailedTables()); diff != "" {
		t.Errorf("failed tables mismatch (-want +got):\n%s", diff)
	}

	book, _ := report.Table("book")
	for _, st := range book.Stages {
		switch st.Stage {
		case StageForward:
			if !errors.Is(st.Err, typemap.ErrUnmappedType) {
				t.Errorf("forward error = %v", st.Err)
			}
			if st.Attempts != 1 {
				t.Errorf("unmapped type retried: %d attempts", st.Attempts)
			}
		case StageReference:
			if st.Err != nil || !strings.HasPrefix(st.Detail, "skipped") {
				t.Errorf("reference stage = %+v", st)
			}
		}
	}
	if n := len(opener.docs.Documents("book")); n != 0 {
		t.Errorf("%d book documents written", n)
	}
	if n := len(opener.docs.Documents("author")); n != 2 {
		t.Errorf("%d author documents written", n)
	}
}

func TestRunRetriesUnavailableStore(t *testing.T) {
	doc := loadDoc(t)
	docs := drivertest.NewDocumentStore("library")
	var mu sync.Mutex
	failures := 0
	docs.Fail = func(op, collection string) error {
		mu.Lock()
		defer mu.Unlock()
		if op == "insert" && collection == "author" && failures < 2 {
			failures++
			return fmt.Errorf("%w: connection reset", drivers.ErrStoreUnavailable)
		}
		return nil
	}
	opener := &fakeOpener{rel: librarySource(t, doc), docs: docs}

	report, err := New(opener, doc, Options{Workers: 1, Retries: 3, Backoff: zeroBackoff}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	author, _ := report.Table("author")
	var forward StageOutcome
	for _, st := range author.Stages {
		if st.Stage == StageForward {
			forward = st
		}
	}
	if forward.Err != nil || forward.Attempts != 3 || forward.Rows != 2 {
		t.Errorf("forward outcome = %+v", forward)
	}
}

func TestRunStopsWhenSourceUnavailable(t *testing.T) {
	doc := loadDoc(t)
	opener := &fakeOpener{
		relErr: fmt.Errorf("%w: dial tcp", drivers.ErrStoreUnavailable),
		docs:   drivertest.NewDocumentStore("library"),
	}

	report, err := New(opener, doc, Options{Backoff: zeroBackoff}).Run(context.Background())
	if !errors.Is(err, drivers.ErrStoreUnavailable) {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status() != "failed" || len(report.Tables) != 3 {
		t.Errorf("report = %s with %d tables", report.Status(), len(report.Tables))
	}
}

func TestRunMalformedSchema(t *testing.T) {
	_, err := New(&fakeOpener{}, []byte(`{}`), Options{}).Run(context.Background())
	if !errors.Is(err, schema.ErrMalformedSchema) {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunDropTarget(t *testing.T) {
	doc := loadDoc(t)
	docs := drivertest.NewDocumentStore("library")
	if _, err := docs.BulkInsert(context.Background(), "leftover", []bson.D{{{Key: "x", Value: 1}}}); err != nil {
		t.Fatal(err)
	}
	opener := &fakeOpener{rel: librarySource(t, doc), docs: docs}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := New(opener, doc, Options{DropTarget: true, Backoff: zeroBackoff}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(docs.Documents("leftover")); n != 0 {
		t.Errorf("leftover collection kept %d documents", n)
	}
}

func TestPhases(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"default", Options{}, []string{StageTranslate, StageForward, StageReference}},
		{"validate", Options{Validate: true}, []string{StageTranslate, StageForward, StageReference, StageValidate}},
		{"selected keep pipeline order", Options{Phases: []string{StageValidate, StageForward}}, []string{StageForward, StageValidate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Phases(tt.opts)); diff != "" {
				t.Errorf("Phases() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunSelectedPhase(t *testing.T) {
	doc := loadDoc(t)
	opener := &fakeOpener{rel: librarySource(t, doc), docs: drivertest.NewDocumentStore("library")}

	report, err := New(opener, doc, Options{Phases: []string{StageTranslate}, Backoff: zeroBackoff}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Phases) != 1 || report.Phases[0].Phase != StageTranslate {
		t.Errorf("phases = %+v", report.Phases)
	}
	if n := len(opener.docs.Documents("author")); n != 0 {
		t.Errorf("translation alone wrote %d documents", n)
	}
	if _, ok := opener.docs.Validators["author"]; !ok {
		t.Error("author validator missing")
	}
}
