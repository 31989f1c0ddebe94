package dlq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopFIFOOrder(t *testing.T) {
	q := New()
	q.Push(Event{Kind: EventClientConnect, ClientID: 1})
	q.Push(Event{Kind: EventClientConnect, ClientID: 2})

	ev1, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, ev1.ClientID)

	ev2, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, ev2.ClientID)
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	done := make(chan Event, 1)
	go func() {
		ev, ok := q.Pop()
		if ok {
			done <- ev
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(Event{Kind: EventClientData, Data: []byte("hi")})

	select {
	case ev := <-done:
		assert.Equal(t, []byte("hi"), ev.Data)
	case <-time.After(time.Second):
		t.Fatal("Pop never returned the pushed event")
	}
}

func TestCloseUnblocksPop(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	go func() {
		defer wg.Done()
		_, ok = q.Pop()
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
	assert.False(t, ok)
}

func TestLenTracksDepth(t *testing.T) {
	q := New()
	assert.Equal(t, 0, q.Len())
	q.Push(Event{Kind: EventClientConnect})
	q.Push(Event{Kind: EventClientConnect})
	assert.Equal(t, 2, q.Len())
	q.Pop()
	assert.Equal(t, 1, q.Len())
}

func TestHighWaterMarkIsEdgeTriggered(t *testing.T) {
	q := New()
	for i := 0; i < defaultHighWaterMark+1; i++ {
		q.Push(Event{Kind: EventClientConnect})
	}
	assert.False(t, q.armed)
	for i := 0; i < defaultHighWaterMark; i++ {
		q.Pop()
	}
	assert.True(t, q.armed)
}
