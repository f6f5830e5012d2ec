// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package daystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{
		Path:   filepath.Join(t.TempDir(), "flightlog.db"),
		Logger: slog.New(slog.NewTextHandler(testWriter{t}, nil)),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestGetPut(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	key := RecordKey("2026-08-26", "0001")
	if err := store.Put(ctx, key, []byte("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != "first" {
		t.Errorf("Get = %q, want %q", value, "first")
	}

	// Put replaces.
	if err := store.Put(ctx, key, []byte("second")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after replace: %v", err)
	}
	if string(value) != "second" {
		t.Errorf("Get after replace = %q, want %q", value, "second")
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), RecordKey("2026-08-26", "absent"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing key: err = %v, want ErrNotFound", err)
	}
}

func TestBatchGetAlignment(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "c"} {
		if err := store.Put(ctx, RecordKey("2026-08-26", id), []byte("v-"+id)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	keys := []string{
		RecordKey("2026-08-26", "a"),
		RecordKey("2026-08-26", "b"), // absent
		RecordKey("2026-08-26", "c"),
	}
	values, err := store.BatchGet(ctx, keys)
	if err != nil {
		t.Fatalf("BatchGet: %v", err)
	}
	if len(values) != len(keys) {
		t.Fatalf("BatchGet returned %d values for %d keys", len(values), len(keys))
	}
	if string(values[0]) != "v-a" || string(values[2]) != "v-c" {
		t.Errorf("BatchGet values = %q, %q", values[0], values[2])
	}
	if values[1] != nil {
		t.Errorf("BatchGet absent key = %q, want nil", values[1])
	}
}

func TestBatchGetEmpty(t *testing.T) {
	store := openTestStore(t)
	values, err := store.BatchGet(context.Background(), nil)
	if err != nil {
		t.Fatalf("BatchGet: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("BatchGet(nil) returned %d values", len(values))
	}
}

func TestIndexAppendOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ids := []string{"one", "two", "three"}
	for _, id := range ids {
		if err := store.AppendIndex(ctx, "2026-08-26", id); err != nil {
			t.Fatalf("AppendIndex: %v", err)
		}
	}
	// Appends to a different day stay invisible.
	if err := store.AppendIndex(ctx, "2026-08-27", "other"); err != nil {
		t.Fatalf("AppendIndex: %v", err)
	}

	got, err := store.ReadIndex(ctx, "2026-08-26")
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("ReadIndex returned %d ids, want %d", len(got), len(ids))
	}
	for i, id := range ids {
		if got[i] != id {
			t.Errorf("index[%d] = %q, want %q", i, got[i], id)
		}
	}
}

func TestReadIndexEmptyDay(t *testing.T) {
	store := openTestStore(t)
	ids, err := store.ReadIndex(context.Background(), "2026-01-01")
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("empty day index has %d ids", len(ids))
	}
}

// TestConcurrentAppends drives parallel writers at the same day's
// index and verifies no append is lost.
func TestConcurrentAppends(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("w%02d-%04d", w, i)
				if err := store.AppendIndex(ctx, "2026-08-26", id); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("AppendIndex: %v", err)
	}

	ids, err := store.ReadIndex(ctx, "2026-08-26")
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(ids) != writers*perWriter {
		t.Fatalf("index has %d ids, want %d", len(ids), writers*perWriter)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate index entry %q", id)
		}
		seen[id] = true
	}
}

func TestRebuildIndexFromScan(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Five records, but only three made it into the index.
	ids := []string{"0001", "0002", "0003", "0004", "0005"}
	for i, id := range ids {
		if err := store.Put(ctx, RecordKey("2026-08-26", id), []byte("r")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if i < 3 {
			if err := store.AppendIndex(ctx, "2026-08-26", id); err != nil {
				t.Fatalf("AppendIndex: %v", err)
			}
		}
	}

	count, err := store.RebuildIndex(ctx, "2026-08-26")
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if count != len(ids) {
		t.Errorf("RebuildIndex count = %d, want %d", count, len(ids))
	}

	got, err := store.ReadIndex(ctx, "2026-08-26")
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("rebuilt index has %d ids, want %d", len(got), len(ids))
	}
	for i, id := range ids {
		if got[i] != id {
			t.Errorf("rebuilt index[%d] = %q, want %q", i, got[i], id)
		}
	}
}

func TestRebuildAfterDrop(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Put(ctx, RecordKey("2026-08-26", id), []byte("r")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.AppendIndex(ctx, "2026-08-26", id); err != nil {
			t.Fatalf("AppendIndex: %v", err)
		}
	}

	if err := store.DropIndex(ctx, "2026-08-26"); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}
	ids, err := store.ReadIndex(ctx, "2026-08-26")
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("index not empty after drop: %v", ids)
	}

	count, err := store.RebuildIndex(ctx, "2026-08-26")
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if count != 2 {
		t.Errorf("RebuildIndex count = %d, want 2", count)
	}
}

func TestScanDayIgnoresOtherKeys(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, RecordKey("2026-08-26", "only"), []byte("r")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, RecordKey("2026-08-27", "next-day"), []byte("r")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, SummaryKey("2026-08-26"), []byte("s")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ids, err := store.ScanDay(ctx, "2026-08-26")
	if err != nil {
		t.Fatalf("ScanDay: %v", err)
	}
	if len(ids) != 1 || ids[0] != "only" {
		t.Errorf("ScanDay = %v, want [only]", ids)
	}
}
