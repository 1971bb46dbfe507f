package clock

import "time"

// preciseSleepTailThreshold is the point at which SleepUntil stops handing
// control back to the scheduler and busy-waits to the target instead.
// source/clock.py's _sleep_precisely_until uses the same two-phase
// approach (recursive halving, then a short spin) to get sub-millisecond
// wake-up accuracy out of an OS sleep call that is otherwise only accurate
// to a millisecond or two.
const preciseSleepTailThreshold = 500 * time.Microsecond

// SleepUntil blocks until target, using time.Now()'s monotonic clock
// reading so it is unaffected by wall-clock adjustments (NTP corrections,
// manual clock changes) made while it runs. It recursively sleeps for half
// the remaining duration, which keeps handing control back to the
// scheduler while repeatedly re-checking the actual remaining time, and
// busy-waits only for the final sliver below preciseSleepTailThreshold
// where OS sleep granularity can no longer be trusted.
func SleepUntil(target time.Time) {
	remaining := time.Until(target)
	if remaining <= 0 {
		return
	}
	if remaining <= preciseSleepTailThreshold {
		for time.Now().Before(target) {
		}
		return
	}
	time.Sleep(remaining / 2)
	SleepUntil(target)
}
