package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sheenazien8/mysql2mongo/drivers/drivertest"
	"github.com/sheenazien8/mysql2mongo/schema"
)

func TestRelations(t *testing.T) {
	s, err := schema.Load("../schema/testdata/library.json")
	if err != nil {
		t.Fatal(err)
	}

	rels, err := Relations(s)
	if err != nil {
		t.Fatal(err)
	}
	want := []Relation{{
		Name:          "fk_book_author",
		ForeignTable:  "book",
		ForeignColumn: "author_id",
		PrimaryTable:  "author",
		PrimaryColumn: "id",
	}}
	if diff := cmp.Diff(want, rels); diff != "" {
		t.Errorf("Relations() mismatch (-want +got):\n%s", diff)
	}
	if got := rels[0].Field(); got != "db_ref_author_id" {
		t.Errorf("Field() = %s", got)
	}
}

func field(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func seed(t *testing.T) (*drivertest.DocumentStore, map[int32]primitive.ObjectID) {
	t.Helper()

	ctx := context.Background()
	docs := drivertest.NewDocumentStore("library")
	ids := map[int32]primitive.ObjectID{}
	for _, id := range []int32{1, 2} {
		oid := primitive.NewObjectID()
		ids[id] = oid
		if err := docs.InsertOne(ctx, "author", bson.D{{Key: "_id", Value: oid}, {Key: "id", Value: id}, {Key: "name", Value: "a"}}); err != nil {
			t.Fatal(err)
		}
	}
	_, err := docs.BulkInsert(ctx, "book", []bson.D{
		{{Key: "id", Value: int32(10)}, {Key: "author_id", Value: int32(1)}},
		{{Key: "id", Value: int32(11)}, {Key: "author_id", Value: int32(1)}},
		{{Key: "id", Value: int32(12)}, {Key: "author_id", Value: int32(2)}},
		{{Key: "id", Value: int32(13)}, {Key: "author_id", Value: int32(99)}},
		{{Key: "id", Value: int32(14)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return docs, ids
}

var bookAuthor = Relation{
	Name:          "fk_book_author",
	ForeignTable:  "book",
	ForeignColumn: "author_id",
	PrimaryTable:  "author",
	PrimaryColumn: "id",
}

func TestConvertReferencesEveryMatchingDocument(t *testing.T) {
	docs, ids := seed(t)

	res, err := NewConverter(docs).Convert(context.Background(), bookAuthor)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Keys != 2 || res.Matched != 3 || res.Modified != 3 {
		t.Errorf("result = %+v", res)
	}
	if docs.BulkUpdates != 1 {
		t.Errorf("bulk writes = %d, want 1", docs.BulkUpdates)
	}

	for _, d := range docs.Documents("book") {
		key, hasKey := field(d, "author_id")
		ref, hasRef := field(d, "db_ref_author_id")

		authorID, _ := key.(int32)
		oid, known := ids[authorID]
		if !hasKey || !known {
			if hasRef {
				t.Errorf("dangling document %v received a reference", d)
			}
			continue
		}

		want := bson.D{
			{Key: "$ref", Value: "author"},
			{Key: "$id", Value: oid},
			{Key: "$db", Value: "library"},
		}
		if diff := cmp.Diff(want, ref); diff != "" {
			t.Errorf("reference of %v mismatch (-want +got):\n%s", d, diff)
		}
	}
}

func TestConvertIsIdempotent(t *testing.T) {
	docs, _ := seed(t)
	conv := NewConverter(docs)

	if _, err := conv.Convert(context.Background(), bookAuthor); err != nil {
		t.Fatal(err)
	}
	res, err := conv.Convert(context.Background(), bookAuthor)
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 3 || res.Modified != 0 {
		t.Errorf("second pass result = %+v", res)
	}
}

func TestConvertUpdateFailure(t *testing.T) {
	docs, _ := seed(t)
	boom := errors.New("boom")
	docs.Fail = func(op, collection string) error {
		if op == "update" {
			return boom
		}
		return nil
	}

	_, err := NewConverter(docs).Convert(context.Background(), bookAuthor)
	if !errors.Is(err, boom) {
		t.Fatalf("Convert() error = %v, want boom", err)
	}
}
