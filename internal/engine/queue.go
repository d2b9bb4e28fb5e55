package engine

import (
	"sync"
)

// job is one submitted request waiting for the Run loop.
type job struct {
	req   Request
	reply chan result
}

type result struct {
	receipt Receipt
	err     error
}

// requestQueue is a thread-safe FIFO queue of submitted requests.
//
// Thread-safety is provided for external submitters (e.g., CLI or transport
// handlers) while the Engine's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type requestQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{} // Signals job availability (buffered, size 1)
}

// newRequestQueue creates an empty queue.
func newRequestQueue() *requestQueue {
	return &requestQueue{
		jobs:   make([]job, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, j)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *requestQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}

	j := q.jobs[0]

	// Release the slot so the fingerprint bytes can be collected.
	q.jobs[0] = job{}

	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}

	return j, true
}

// Wait returns a channel that signals when jobs may be available.
// The channel is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close signals that no more jobs will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
