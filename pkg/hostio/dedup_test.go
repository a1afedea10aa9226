package hostio

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *DedupStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dedup.db")
	store, err := OpenDedupStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIsNewAccessNumberFirstSeenIsNew(t *testing.T) {
	store := openTestStore(t)
	isNew, err := store.IsNewAccessNumber(0x1234, 42, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("expected the first access number seen for a meter to be new")
	}
}

func TestIsNewAccessNumberRepeatIsNotNew(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.IsNewAccessNumber(0x1234, 42, 7); err != nil {
		t.Fatal(err)
	}
	isNew, err := store.IsNewAccessNumber(0x1234, 42, 7)
	if err != nil {
		t.Fatal(err)
	}
	if isNew {
		t.Fatal("expected a repeated access number for the same meter to not be new")
	}
}

func TestIsNewAccessNumberAdvancingIsNew(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.IsNewAccessNumber(0x1234, 42, 7); err != nil {
		t.Fatal(err)
	}
	isNew, err := store.IsNewAccessNumber(0x1234, 42, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("expected an advanced access number to be treated as new")
	}
}

func TestIsNewAccessNumberDistinctMetersIndependent(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.IsNewAccessNumber(0x1234, 42, 7); err != nil {
		t.Fatal(err)
	}
	isNew, err := store.IsNewAccessNumber(0x1234, 43, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("expected a different meter id to be tracked independently")
	}
}

func TestClearAllResetsSeenState(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.IsNewAccessNumber(0x1234, 42, 7); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearAll(); err != nil {
		t.Fatal(err)
	}
	isNew, err := store.IsNewAccessNumber(0x1234, 42, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("expected ClearAll to forget previously seen access numbers")
	}
}
