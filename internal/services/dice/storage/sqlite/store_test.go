package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/dicenotation/internal/services/dice/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "rolls.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func sampleRoll(id string, at time.Time) storage.RollRecord {
	return storage.RollRecord{
		ID:         id,
		Notation:   "4d6kh3+2",
		Label:      "Strength",
		Total:      15,
		Modifier:   2,
		Breakdown:  "4d6kh3 [6, 5, ~1~, 2] = 13, modifier +2",
		Seed:       9007199254740993,
		SeedSource: "SERVER",
		RollMode:   "LIVE",
		CreatedAt:  at,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestPutAndGetRoll(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := sampleRoll("roll-1", at)

	if err := store.PutRoll(context.Background(), want); err != nil {
		t.Fatalf("put roll: %v", err)
	}
	got, err := store.GetRoll(context.Background(), "roll-1")
	if err != nil {
		t.Fatalf("get roll: %v", err)
	}
	if got != want {
		t.Fatalf("roll = %+v, want %+v", got, want)
	}
}

func TestPutRollRejectsDuplicateID(t *testing.T) {
	store := openTestStore(t)
	record := sampleRoll("roll-1", time.Now())
	if err := store.PutRoll(context.Background(), record); err != nil {
		t.Fatalf("put roll: %v", err)
	}
	err := store.PutRoll(context.Background(), record)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("second put error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestPutRollValidatesRecord(t *testing.T) {
	store := openTestStore(t)
	if err := store.PutRoll(context.Background(), storage.RollRecord{Notation: "1d6"}); err == nil {
		t.Fatal("expected missing id error")
	}
	if err := store.PutRoll(context.Background(), storage.RollRecord{ID: "x"}); err == nil {
		t.Fatal("expected missing notation error")
	}
}

func TestGetRollNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetRoll(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListRecentRollsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		record := sampleRoll(fmt.Sprintf("roll-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := store.PutRoll(context.Background(), record); err != nil {
			t.Fatalf("put roll %d: %v", i, err)
		}
	}

	records, err := store.ListRecentRolls(context.Background(), 3)
	if err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	wantIDs := []string{"roll-4", "roll-3", "roll-2"}
	if len(records) != len(wantIDs) {
		t.Fatalf("got %d rolls, want %d", len(records), len(wantIDs))
	}
	for i, id := range wantIDs {
		if records[i].ID != id {
			t.Fatalf("records[%d].ID = %q, want %q", i, records[i].ID, id)
		}
	}
}

func TestListRecentRollsBreaksTiesByInsertion(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"first", "second"} {
		if err := store.PutRoll(context.Background(), sampleRoll(id, at)); err != nil {
			t.Fatalf("put roll: %v", err)
		}
	}
	records, err := store.ListRecentRolls(context.Background(), 10)
	if err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	if len(records) != 2 || records[0].ID != "second" {
		t.Fatalf("unexpected order: %+v", records)
	}
}

func TestListRecentRollsRejectsNonPositiveLimit(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.ListRecentRolls(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestStoreRespectsCancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.PutRoll(ctx, sampleRoll("roll-1", time.Now())); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
