package client

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/lobby/internal/codec"
)

// Entry is one received message. Topic is the broadcast topic the message
// was published on, empty for private replies.
type Entry struct {
	Received time.Time
	Topic    string
	Fields   codec.Fields
}

// Inbox is an unbounded FIFO safe for concurrent producers and consumers.
type Inbox struct {
	mu     sync.Mutex
	items  []Entry
	notify chan struct{}
}

func NewInbox() *Inbox {
	return &Inbox{notify: make(chan struct{}, 1)}
}

func (q *Inbox) Put(e Entry) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.signal()
}

func (q *Inbox) TryGet() (Entry, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Entry{}, false
	}
	e := q.items[0]
	q.items[0] = Entry{}
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()
	// pass the wakeup on to another waiting consumer
	if more {
		q.signal()
	}
	return e, true
}

// Get blocks until an entry is available or ctx is done.
func (q *Inbox) Get(ctx context.Context) (Entry, error) {
	for {
		if e, ok := q.TryGet(); ok {
			return e, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		}
	}
}

func (q *Inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Inbox) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
