package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func setup(t *testing.T) {
	t.Helper()

	if err := Init(filepath.Join(t.TempDir(), "nested", "journal.db")); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestRunLifecycle(t *testing.T) {
	setup(t)

	id, err := CreateRun("library", "library_docs")
	if err != nil {
		t.Fatal(err)
	}

	run, err := GetRun(id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusRunning || run.FinishedAt != nil {
		t.Errorf("new run = %+v", run)
	}

	if err := FinishRun(id, StatusPartial); err != nil {
		t.Fatal(err)
	}
	run, err = GetRun(id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusPartial || run.FinishedAt == nil {
		t.Errorf("finished run = %+v", run)
	}

	latest, err := LatestRun()
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != id {
		t.Errorf("LatestRun() = %s, want %s", latest.ID, id)
	}
}

func TestOutcomesAndDiffs(t *testing.T) {
	setup(t)
	ctx := context.Background()

	id, err := CreateRun("library", "library")
	if err != nil {
		t.Fatal(err)
	}

	outcomes := []TableOutcome{
		{RunID: id, Table: "author", Stage: "forward", Rows: 2, Duration: 12},
		{RunID: id, Table: "book", Stage: "forward", Error: "unmapped type"},
	}
	for _, o := range outcomes {
		if err := AddOutcome(o); err != nil {
			t.Fatal(err)
		}
	}
	got, err := GetOutcomes(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(outcomes, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	diff := DiffSummary{RunID: id, Table: "author", DataRows: 1, Detail: `{"data":[[3,"Ghost"]]}`}
	if err := AddDiff(diff); err != nil {
		t.Fatal(err)
	}
	diffs, err := GetDiffs(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]DiffSummary{diff}, diffs); d != "" {
		t.Errorf("diffs mismatch (-want +got):\n%s", d)
	}

	if err := DeleteRun(id); err != nil {
		t.Fatal(err)
	}
	if _, err := GetRun(id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() after delete error = %v", err)
	}
	if got, _ := GetOutcomes(ctx, id); len(got) != 0 {
		t.Errorf("%d outcomes survived delete", len(got))
	}
}

func TestUnknownRun(t *testing.T) {
	setup(t)

	if err := FinishRun("missing", StatusFailed); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun() error = %v", err)
	}
	if _, err := LatestRun(); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() on empty journal error = %v", err)
	}
}
