package clock

import (
	"github.com/amane-labs/polyclock/pkg/logger"
	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize mirrors source/clock.py's default pool_size of 200
// concurrently-forked clocks per master before new forks fall back to an
// ad-hoc goroutine instead of a pooled one.
const DefaultPoolSize = 200

// WorkerPool bounds how many forked clock bodies run as pooled goroutines
// at once, grounded on clock.py's use of multiprocessing.pool.ThreadPool
// together with a BoundedSemaphore: a fork first tries to acquire a permit
// without blocking; if the pool is saturated it warns and runs the body on
// its own goroutine instead of blocking the caller (which would deadlock a
// fork tree deeper than the pool is wide). golang.org/x/sync/semaphore
// gives the same non-blocking TryAcquire primitive Python's
// BoundedSemaphore.acquire(blocking=False) provides.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int64
}

// NewWorkerPool creates a pool with the given capacity. A non-positive
// size falls back to DefaultPoolSize.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &WorkerPool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Submit runs task on a goroutine. If the pool has a free permit, task runs
// under it (and the permit is released when task returns). Otherwise
// Submit logs a warning and runs task on an unpooled goroutine rather than
// blocking the caller.
func (p *WorkerPool) Submit(task func()) {
	if p.sem.TryAcquire(1) {
		go func() {
			defer p.sem.Release(1)
			task()
		}()
		return
	}
	logger.LogWarn("worker pool exhausted (capacity %d); running forked clock on an unpooled goroutine", p.size)
	go task()
}
