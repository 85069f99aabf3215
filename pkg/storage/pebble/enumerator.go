package pebble

import (
	"context"

	"github.com/cockroachdb/pebble/v2"
	"github.com/fgrzl/enumerators"
)

type KeyValuePair struct {
	Key   []byte
	Value []byte
}

// NewPebbleEnumerator walks the key range described by opts in ascending
// order. Key and value slices are copied out of the iterator so they stay
// valid after the cursor advances.
func NewPebbleEnumerator(ctx context.Context, db *pebble.DB, opts *pebble.IterOptions) enumerators.Enumerator[KeyValuePair] {
	return &pebbleEnumerator{ctx: ctx, db: db, opts: opts}
}

type pebbleEnumerator struct {
	ctx     context.Context
	db      *pebble.DB
	opts    *pebble.IterOptions
	iter    *pebble.Iterator
	current KeyValuePair
	err     error
	done    bool
}

func (e *pebbleEnumerator) MoveNext() bool {
	if e.done {
		return false
	}

	var valid bool
	if e.iter == nil {
		iter, err := e.db.NewIterWithContext(e.ctx, e.opts)
		if err != nil {
			e.err = err
			e.done = true
			return false
		}
		e.iter = iter
		valid = e.iter.First()
	} else {
		valid = e.iter.Next()
	}

	if !valid {
		e.err = e.iter.Error()
		e.done = true
		return false
	}

	e.current = KeyValuePair{
		Key:   append([]byte(nil), e.iter.Key()...),
		Value: append([]byte(nil), e.iter.Value()...),
	}
	return true
}

func (e *pebbleEnumerator) Current() (KeyValuePair, error) {
	return e.current, e.err
}

func (e *pebbleEnumerator) Err() error {
	return e.err
}

func (e *pebbleEnumerator) Dispose() {
	e.done = true
	if e.iter != nil {
		e.iter.Close()
		e.iter = nil
	}
}
