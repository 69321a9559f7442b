package engine

import "sort"

// task is one deferred trigger action.
type task struct {
	due    int64 // log timestamp at which the task becomes runnable
	seq    int64 // firing seq, breaks ties between equal due times
	ruleID string
	run    func() error
}

// deferredQueue holds trigger actions waiting for the replay to reach
// their due time.
//
// Tasks are kept ordered by (due, seq) so draining is deterministic. The
// queue is only touched by the engine that owns it; a perspective never
// shares its queue, so there is no locking.
type deferredQueue struct {
	tasks []task
}

// newDeferredQueue creates an empty queue.
func newDeferredQueue() *deferredQueue {
	return &deferredQueue{
		tasks: make([]task, 0, 8),
	}
}

// Push inserts t keeping (due, seq) order.
func (q *deferredQueue) Push(t task) {
	i := sort.Search(len(q.tasks), func(i int) bool {
		o := q.tasks[i]
		return o.due > t.due || (o.due == t.due && o.seq > t.seq)
	})
	q.tasks = append(q.tasks, task{})
	copy(q.tasks[i+1:], q.tasks[i:])
	q.tasks[i] = t
}

// PopDue removes and returns the earliest task with due <= now.
// Returns (task{}, false) if nothing is due.
func (q *deferredQueue) PopDue(now int64) (task, bool) {
	if len(q.tasks) == 0 || q.tasks[0].due > now {
		return task{}, false
	}

	t := q.tasks[0]

	// Clear the slot so the closure can be collected.
	q.tasks[0] = task{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Len returns the number of waiting tasks.
func (q *deferredQueue) Len() int {
	return len(q.tasks)
}
