package state

import (
	"bytes"
	"testing"

	"downpay/storage"
)

func TestTransitionOverlayReadsAndCommit(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tr := NewTransition(db)
	v, ok, err := tr.Get([]byte("a"))
	if err != nil || !ok || !bytes.Equal(v, []byte("1")) {
		t.Fatalf("read through failed: %v %v %q", err, ok, v)
	}

	if err := tr.Put([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tr.Put([]byte("b"), []byte("3")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Overlay is visible to the transition but not to the database yet.
	v, ok, _ = tr.Get([]byte("a"))
	if !ok || !bytes.Equal(v, []byte("2")) {
		t.Fatalf("overlay read: %q", v)
	}
	if raw, err := db.Get([]byte("a")); err != nil || !bytes.Equal(raw, []byte("1")) {
		t.Fatalf("database mutated before commit: %q %v", raw, err)
	}

	if err := tr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if raw, err := db.Get([]byte("a")); err != nil || !bytes.Equal(raw, []byte("2")) {
		t.Fatalf("commit not applied: %q %v", raw, err)
	}
	if raw, err := db.Get([]byte("b")); err != nil || !bytes.Equal(raw, []byte("3")) {
		t.Fatalf("commit not applied: %q %v", raw, err)
	}
}

func TestTransitionDiscardRollsBack(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("nonce"), []byte{7}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tr := NewTransition(db)
	if err := tr.Put([]byte("nonce"), []byte{8}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tr.Delete([]byte("nonce")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := tr.Get([]byte("nonce")); ok {
		t.Fatalf("delete not visible in overlay")
	}

	// Dropping the transition leaves the database untouched.
	tr = nil
	raw, err := db.Get([]byte("nonce"))
	if err != nil || !bytes.Equal(raw, []byte{7}) {
		t.Fatalf("backing store changed without commit: %q %v", raw, err)
	}
}

func TestTransitionDeleteCommits(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("x"), []byte("y")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tr := NewTransition(db)
	if err := tr.Delete([]byte("x")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := db.Get([]byte("x")); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
