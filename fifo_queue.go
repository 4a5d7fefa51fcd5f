// fifo_queue.go
package tickpool

// jobQueue is a growable first-in-first-out ring of pending jobs.
//
// It is not safe for concurrent use; the Scheduler guards it with its
// queue lock. Jobs are handed out strictly in submission order, but any
// idle worker may take the head.
type jobQueue struct {
	buf        []*Job // circular buffer
	head, tail int    // read/write indices
	size       int    // number of jobs currently buffered
	capacity   int
}

func newJobQueue(capacity int) *jobQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &jobQueue{
		buf:      make([]*Job, capacity),
		capacity: capacity,
	}
}

// Len returns the number of jobs currently waiting in the queue.
func (q *jobQueue) Len() int { return q.size }

// Push appends j at the tail, doubling the buffer when it is full.
func (q *jobQueue) Push(j *Job) {
	if q.size == q.capacity {
		q.grow()
	}
	q.buf[q.tail] = j
	q.tail++
	if q.tail == q.capacity {
		q.tail = 0
	}
	q.size++
}

// Pop removes and returns the oldest job, or nil and false if empty.
func (q *jobQueue) Pop() (*Job, bool) {
	if q.size == 0 {
		return nil, false
	}
	j := q.buf[q.head]
	q.buf[q.head] = nil
	q.head++
	if q.head == q.capacity {
		q.head = 0
	}
	q.size--
	return j, true
}

// Drain empties the queue and returns its jobs in order.
func (q *jobQueue) Drain() []*Job {
	out := make([]*Job, 0, q.size)
	for {
		j, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, j)
	}
}

func (q *jobQueue) grow() {
	next := make([]*Job, q.capacity*2)
	// unroll the ring so head lands at index 0
	n := copy(next, q.buf[q.head:])
	copy(next[n:], q.buf[:q.head])
	q.buf = next
	q.head = 0
	q.tail = q.size
	q.capacity = len(next)
}
