package engine

import (
	"container/heap"

	"github.com/rezkam/retryq/internal/domain"
)

// entry wraps a Record with the bookkeeping the priority queue needs: its
// position in the backing array (for heap.Remove/Fix) and a "writing" flag
// marking a submission whose active-prefix document has not yet been
// confirmed durable (§9 "Allowed tightening").
type entry struct {
	record    *domain.Record
	writing   bool
	heapIndex int
}

// priorityQueue is a min-heap ordered by (next_retry_at, sequence) — ties
// broken by insertion order for fairness (§3 invariant 5, §4.1 tie-breaking).
type priorityQueue []*entry

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	ti, tj := pq[i].record.NextRetryAt, pq[j].record.NextRetryAt
	if ti.Equal(tj) {
		return pq[i].record.Sequence() < pq[j].record.Sequence()
	}
	return ti.Before(tj)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].heapIndex = i
	pq[j].heapIndex = j
}

func (pq *priorityQueue) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*pq)
	*pq = append(*pq, e)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*pq = old[:n-1]
	return e
}

// pushEntry inserts e into pq, maintaining the heap invariant.
func pushEntry(pq *priorityQueue, e *entry) {
	heap.Push(pq, e)
}

// popEntry removes and returns the minimum entry.
func popEntry(pq *priorityQueue) *entry {
	return heap.Pop(pq).(*entry)
}

// removeEntry removes e from pq by its current heap position.
func removeEntry(pq *priorityQueue, e *entry) {
	if e.heapIndex < 0 || e.heapIndex >= pq.Len() {
		return
	}
	heap.Remove(pq, e.heapIndex)
}

// peek returns the minimum entry without removing it, or nil if empty.
func (pq priorityQueue) peek() *entry {
	if len(pq) == 0 {
		return nil
	}
	return pq[0]
}
