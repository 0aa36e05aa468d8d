package watch

import "container/heap"

// deadlineQueue is a min-heap of pending entries ordered by ScheduledAt.
// Ties break on path, then rule index, so flush order is deterministic.
type deadlineQueue []*Entry

func (q deadlineQueue) Len() int { return len(q) }

func (q deadlineQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if !a.ScheduledAt.Equal(b.ScheduledAt) {
		return a.ScheduledAt.Before(b.ScheduledAt)
	}
	if a.path != b.path {
		return a.path < b.path
	}
	return a.ruleIndex < b.ruleIndex
}

func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *deadlineQueue) Push(x any) {
	e := x.(*Entry)
	e.heapIndex = len(*q)
	*q = append(*q, e)
}

func (q *deadlineQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*q = old[:n-1]
	return e
}

func (q *deadlineQueue) push(e *Entry) { heap.Push(q, e) }

func (q *deadlineQueue) fix(e *Entry) { heap.Fix(q, e.heapIndex) }

func (q *deadlineQueue) pop() *Entry { return heap.Pop(q).(*Entry) }

func (q deadlineQueue) peek() *Entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}
