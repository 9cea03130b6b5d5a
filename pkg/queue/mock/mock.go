package mock

import (
	"context"
	"sync"

	"github.com/fluxcd/seedy/pkg/queue"
)

// Queue hands out the batches given, one per Receive, then empty
// batches. If ReceiveFunc or DeleteFunc are set, they are used
// instead. Deletions are recorded either way.
type Queue struct {
	Batches     [][]queue.Message
	ReceiveFunc func(ctx context.Context) ([]queue.Message, error)
	DeleteFunc  func(ctx context.Context, receiptHandle string) error

	mu       sync.Mutex
	receives int
	deleted  []string
}

var _ queue.Queue = &Queue{}

func (q *Queue) Receive(ctx context.Context) ([]queue.Message, error) {
	q.mu.Lock()
	n := q.receives
	q.receives++
	q.mu.Unlock()
	if q.ReceiveFunc != nil {
		return q.ReceiveFunc(ctx)
	}
	if n < len(q.Batches) {
		return q.Batches[n], nil
	}
	return nil, nil
}

func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	q.deleted = append(q.deleted, receiptHandle)
	q.mu.Unlock()
	if q.DeleteFunc != nil {
		return q.DeleteFunc(ctx, receiptHandle)
	}
	return nil
}

// Deleted gives the receipt handles of the messages deleted (acked),
// in order.
func (q *Queue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

// Receives is how many times Receive has been called.
func (q *Queue) Receives() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.receives
}
