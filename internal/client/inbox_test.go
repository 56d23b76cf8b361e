package client

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/lobby/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxFIFO(t *testing.T) {
	q := NewInbox()
	for _, m := range []string{"a", "b", "c"} {
		q.Put(Entry{Fields: codec.Fields{codec.FieldMessage: m}})
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.TryGet()
		require.True(t, ok)
		assert.Equal(t, want, e.Fields[codec.FieldMessage])
	}
	_, ok := q.TryGet()
	assert.False(t, ok)
}

func TestInboxGetBlocksUntilPut(t *testing.T) {
	q := NewInbox()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Put(Entry{Topic: "#late"})
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#late", e.Topic)
}

func TestInboxGetCancelled(t *testing.T) {
	q := NewInbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInboxConcurrentConsumers(t *testing.T) {
	const n = 200
	q := NewInbox()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, err := q.Get(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[e.Topic]++
				done := len(seen) == n
				mu.Unlock()
				if done {
					cancel()
				}
			}
		}()
	}
	for i := range n {
		q.Put(Entry{Topic: strconv.Itoa(i)})
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for topic, count := range seen {
		assert.Equal(t, 1, count, topic)
	}
	assert.Zero(t, q.Len())
}
