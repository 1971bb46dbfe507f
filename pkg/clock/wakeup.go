package clock

import "sort"

// wakeUp is a scheduled wake-up call a child clock has registered on its
// parent's queue: "wake me at parentTime". It is comparable by parentTime;
// seq exists purely to break ties in registration order, since two
// children can legitimately register for the exact same parent_time
// (spec.md section 5: "ties are broken by insertion order").
type wakeUp struct {
	parentTime float64
	clock      *Clock
	seq        int64
}

// insertSorted inserts w into queue, which is kept sorted ascending by
// (parentTime, seq).
func insertSorted(queue []wakeUp, w wakeUp) []wakeUp {
	i := sort.Search(len(queue), func(i int) bool {
		if queue[i].parentTime != w.parentTime {
			return queue[i].parentTime > w.parentTime
		}
		return queue[i].seq > w.seq
	})
	queue = append(queue, wakeUp{})
	copy(queue[i+1:], queue[i:])
	queue[i] = w
	return queue
}

// removeWakeUpsFor drops any queued wake-up referencing clock. At most one
// should ever exist (spec.md's "at most one pending wake-up per child"
// invariant), but a dying child whose body panicked mid-registration is
// cleaned up defensively regardless.
func removeWakeUpsFor(queue []wakeUp, target *Clock) []wakeUp {
	kept := queue[:0:0]
	for _, w := range queue {
		if w.clock != target {
			kept = append(kept, w)
		}
	}
	return kept
}
