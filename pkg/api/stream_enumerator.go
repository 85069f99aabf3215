package api

import (
	"errors"

	"github.com/fgrzl/enumerators"
)

// NewStreamEnumerator pulls decoded messages of type T off a BidiStream
// until end of stream. A decode error other than end-of-stream surfaces
// through Current after MoveNext returns false.
func NewStreamEnumerator[T any](stream BidiStream) enumerators.Enumerator[T] {
	return &streamEnumerator[T]{stream: stream}
}

type streamEnumerator[T any] struct {
	stream  BidiStream
	current T
	err     error
	done    bool
}

func (e *streamEnumerator[T]) MoveNext() bool {
	if e.done {
		return false
	}
	var v T
	if err := e.stream.Decode(&v); err != nil {
		e.done = true
		if !errors.Is(err, e.stream.EndOfStreamError()) {
			e.err = err
		}
		return false
	}
	e.current = v
	return true
}

func (e *streamEnumerator[T]) Current() (T, error) {
	return e.current, e.err
}

func (e *streamEnumerator[T]) Err() error {
	return e.err
}

func (e *streamEnumerator[T]) Dispose() {
	e.done = true
	e.stream.Close(nil)
}
