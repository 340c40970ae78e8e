package state

import (
	"errors"
	"sort"

	"downpay/storage"
)

var errNilDatabase = errors.New("state: database not configured")

// Transition is a write buffer layered over a storage.Database. Every
// settlement call runs against exactly one transition: reads fall through to
// the backing store, writes stay in the overlay until Commit. Discarding the
// transition (by simply not committing it) rolls back every effect of the
// call, which is what makes the borrow/buy/collateralize/repay sequence
// all-or-nothing.
type Transition struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewTransition opens a fresh overlay on top of the supplied database.
func NewTransition(db storage.Database) *Transition {
	return &Transition{
		db:      db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Get returns the value for key, preferring uncommitted writes. The second
// return reports whether the key exists at all.
func (t *Transition) Get(key []byte) ([]byte, bool, error) {
	if t == nil || t.db == nil {
		return nil, false, errNilDatabase
	}
	k := string(key)
	if _, gone := t.deletes[k]; gone {
		return nil, false, nil
	}
	if v, ok := t.writes[k]; ok {
		return append([]byte(nil), v...), true, nil
	}
	v, err := t.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put records a pending write.
func (t *Transition) Put(key, value []byte) error {
	if t == nil || t.db == nil {
		return errNilDatabase
	}
	k := string(key)
	delete(t.deletes, k)
	t.writes[k] = append([]byte(nil), value...)
	return nil
}

// Delete records a pending removal.
func (t *Transition) Delete(key []byte) error {
	if t == nil || t.db == nil {
		return errNilDatabase
	}
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
	return nil
}

// Commit flushes the overlay into the backing database. Keys are written in
// sorted order so persistent backends see a deterministic sequence.
func (t *Transition) Commit() error {
	if t == nil || t.db == nil {
		return errNilDatabase
	}
	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := t.db.Put([]byte(k), t.writes[k]); err != nil {
			return err
		}
	}
	for k := range t.deletes {
		if err := t.db.Delete([]byte(k)); err != nil {
			return err
		}
	}
	t.writes = make(map[string][]byte)
	t.deletes = make(map[string]struct{})
	return nil
}
