package observable

import (
	"context"
	"sync"

	"github.com/fgrzl/obskit/pkg/api"
)

// Subject is a fan-out observable. Values pushed with Next are delivered
// to every attached observer in publish order, on the publisher's
// goroutine. A terminal event (Error or Complete) is sticky: observers
// attaching afterwards receive it immediately and nothing else.
type Subject[T any] struct {
	mu          sync.Mutex
	nextID      uint64
	observers   map[uint64]api.Observer[T]
	done        bool
	terminalErr error
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{
		observers: make(map[uint64]api.Observer[T]),
	}
}

func (s *Subject[T]) Subscribe(ctx context.Context, observer api.Observer[T]) api.Subscription {
	s.mu.Lock()
	if s.done {
		err := s.terminalErr
		s.mu.Unlock()
		if err != nil {
			observer.OnError(err)
		} else {
			observer.OnComplete()
		}
		return &subjectSubscription[T]{}
	}

	id := s.nextID
	s.nextID++
	s.observers[id] = observer
	s.mu.Unlock()

	return &subjectSubscription[T]{subject: s, id: id}
}

// Next delivers v to all current observers. No-op after a terminal event.
func (s *Subject[T]) Next(v T) {
	for _, observer := range s.snapshot() {
		observer.OnNext(v)
	}
}

// Error terminates the subject, delivering err to all observers.
func (s *Subject[T]) Error(err error) {
	for _, observer := range s.terminate(err) {
		observer.OnError(err)
	}
}

// Complete terminates the subject, notifying all observers.
func (s *Subject[T]) Complete() {
	for _, observer := range s.terminate(nil) {
		observer.OnComplete()
	}
}

func (s *Subject[T]) snapshot() []api.Observer[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	observers := make([]api.Observer[T], 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	return observers
}

func (s *Subject[T]) terminate(err error) []api.Observer[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.terminalErr = err
	observers := make([]api.Observer[T], 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.observers = nil
	return observers
}

type subjectSubscription[T any] struct {
	subject *Subject[T]
	id      uint64
	once    sync.Once
}

func (s *subjectSubscription[T]) Unsubscribe() {
	s.once.Do(func() {
		if s.subject == nil {
			return
		}
		s.subject.mu.Lock()
		defer s.subject.mu.Unlock()
		if s.subject.observers != nil {
			delete(s.subject.observers, s.id)
		}
	})
}
