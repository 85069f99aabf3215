package observable

import (
	"errors"
	"testing"

	"github.com/fgrzl/obskit/pkg/api"
	"github.com/stretchr/testify/assert"
)

type recordingObserver struct {
	values    []int
	err       error
	completed bool
}

func (o *recordingObserver) OnNext(v int)      { o.values = append(o.values, v) }
func (o *recordingObserver) OnError(err error) { o.err = err }
func (o *recordingObserver) OnComplete()       { o.completed = true }

func TestSubjectDeliversInOrder(t *testing.T) {
	// Arrange
	subject := NewSubject[int]()
	observer := &recordingObserver{}
	subject.Subscribe(t.Context(), observer)

	// Act
	subject.Next(1)
	subject.Next(2)
	subject.Next(3)
	subject.Complete()

	// Assert
	assert.Equal(t, []int{1, 2, 3}, observer.values)
	assert.True(t, observer.completed)
	assert.NoError(t, observer.err)
}

func TestSubjectFansOut(t *testing.T) {
	subject := NewSubject[int]()
	a, b := &recordingObserver{}, &recordingObserver{}
	subject.Subscribe(t.Context(), a)
	subject.Subscribe(t.Context(), b)

	subject.Next(7)

	assert.Equal(t, []int{7}, a.values)
	assert.Equal(t, []int{7}, b.values)
}

func TestSubjectUnsubscribeStopsDelivery(t *testing.T) {
	subject := NewSubject[int]()
	observer := &recordingObserver{}
	sub := subject.Subscribe(t.Context(), observer)

	subject.Next(1)
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	subject.Next(2)

	assert.Equal(t, []int{1}, observer.values)
}

func TestSubjectTerminalIsSticky(t *testing.T) {
	subject := NewSubject[int]()
	subject.Error(errors.New("boom"))

	late := &recordingObserver{}
	subject.Subscribe(t.Context(), late)

	assert.EqualError(t, late.err, "boom")
	assert.Empty(t, late.values)

	// Terminal state suppresses further emissions.
	subject.Next(9)
	subject.Complete()
	assert.Empty(t, late.values)
	assert.False(t, late.completed)
}

func TestSubjectCallbackObserver(t *testing.T) {
	subject := NewSubject[int]()
	var got []int
	var completed bool
	subject.Subscribe(t.Context(), api.NewObserver(
		func(v int) { got = append(got, v) },
		nil,
		func() { completed = true },
	))

	subject.Next(5)
	subject.Complete()

	assert.Equal(t, []int{5}, got)
	assert.True(t, completed)
}
