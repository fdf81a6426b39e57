package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New[int]()
	a, b := 1, 2
	q.Enqueue(&a)
	q.Enqueue(&b)

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, *got)

	got, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 2, *got)
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New[int]()
	done := make(chan int, 1)

	go func() {
		v, ok := q.Dequeue()
		if ok {
			done <- *v
		} else {
			done <- -1
		}
	}()

	time.Sleep(20 * time.Millisecond)
	v := 7
	q.Enqueue(&v)

	select {
	case got := <-done:
		assert.Equal(t, 7, got)
	case <-time.After(time.Second):
		t.Fatal("dequeue never returned")
	}
}

func TestKillWakesBlockedDequeuers(t *testing.T) {
	q := New[int]()
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Kill()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke after kill")
	}
	assert.False(t, q.Running())
}

func TestTryDequeueDoesNotBlockWhenEmpty(t *testing.T) {
	q := New[int]()
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestTryDequeuePopsFront(t *testing.T) {
	q := New[int]()
	a, b := 1, 2
	q.Enqueue(&a)
	q.Enqueue(&b)

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, *got)
	assert.Equal(t, 1, q.Len())
}

func TestKillDrainsRemainingItemsFirst(t *testing.T) {
	q := New[int]()
	v := 42
	q.Enqueue(&v)
	q.Kill()

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 42, *got)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}
