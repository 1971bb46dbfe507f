// Package tempo implements the TempoMap component (spec.md C3): a curve of
// beat-length (parent-seconds per beat) that tracks how many beats and how
// much parent-time a clock has accumulated, and converts between the two.
//
// # Architecture
//
// TempoMap wraps a curve.Curve whose value at beat position b is the
// instantaneous beat length there. Reading beats()/time() gives the
// clock's accumulated position; get_wait_time integrates the curve ahead
// of that position to find how much parent-time a future beat interval
// will take; advance commits a beat interval (and the parent-time it took)
// to that position. This mirrors source/clock.py's TempoMap exactly, and
// is the same beat<->time conversion idea pkg/engine/tick_generator.go
// (from the teacher repo) implements for MIDI ticks against a tempo map of
// its own, just generalized to an arbitrary curve shape instead of a
// stepwise list of BPM events.
//
// # Thread safety
//
// A TempoMap is owned by exactly one Clock and is only ever read or
// written by that clock's own goroutine (its tempo setters are expected to
// be called from the clock's own forked body). No internal locking is
// done; spec.md section 9 leaves this single-writer assumption explicit
// rather than guessing at a concurrent-safe design the original never
// specified.
package tempo

import "github.com/amane-labs/polyclock/pkg/curve"

// Map is the beat-length curve driving one clock's sense of time.
type Map struct {
	curve *curve.Curve
	beats float64
	t     float64
}

// New creates a tempo map starting at the given rate (beats per
// parent-second). A startingRate of 1.0 means one beat per parent-second.
func New(startingRate float64) *Map {
	return &Map{curve: curve.New(1 / startingRate)}
}

// Time returns the cumulative parent-seconds elapsed on this clock.
func (m *Map) Time() float64 { return m.t }

// Beats returns the cumulative beats elapsed on this clock.
func (m *Map) Beats() float64 { return m.beats }

// BeatLength returns the current instantaneous beat length, in
// parent-seconds per beat.
func (m *Map) BeatLength() float64 { return m.curve.ValueAt(m.beats) }

// SetBeatLength sets an instantaneous beat length starting now: any future
// curve is discarded and a zero-duration segment jumps straight to the new
// value (see curve.Curve's doc on zero-duration segments).
func (m *Map) SetBeatLength(beatLength float64) {
	m.prepareForNewSegment()
	m.curve.AppendSegment(beatLength, 0)
}

// Rate returns the current rate in beats per parent-second.
func (m *Map) Rate() float64 { return 1 / m.BeatLength() }

// SetRate sets an instantaneous rate (beats per parent-second).
func (m *Map) SetRate(rate float64) { m.SetBeatLength(1 / rate) }

// Tempo returns the current tempo in beats per minute (parent-seconds as
// minutes).
func (m *Map) Tempo() float64 { return m.Rate() * 60 }

// SetTempo sets an instantaneous tempo in beats per minute.
func (m *Map) SetTempo(tempo float64) { m.SetRate(tempo / 60) }

// SetBeatLengthTarget schedules a transition of beat length to target over
// transitionBeats beats of this clock's own time, with the given curve
// shape (0 is linear). A non-positive transitionBeats is an instantaneous
// step, matching the scalar setter semantics (spec.md section 7).
func (m *Map) SetBeatLengthTarget(target, transitionBeats float64, shape ...float64) {
	m.prepareForNewSegment()
	m.curve.AppendSegment(target, transitionBeats, shape...)
}

// SetRateTarget schedules a transition of rate to target over
// transitionBeats beats, with rate itself (not beat length) moving at a
// constant pace: it appends a harmonic segment (linear in 1/beat-length)
// rather than converting the target to a beat length and handing it to
// SetBeatLengthTarget's ordinary (beat-length-linear) segment. A beat-
// length-linear ramp would make the rate change nonlinearly, which spec.md
// section 8's S2 scenario (a 60->120bpm ramp over 10 beats taking exactly
// 10*ln(2) seconds) pins down as wrong: that value only falls out of a
// rate that changes at a constant pace. shape is accepted for API
// symmetry with SetBeatLengthTarget but ignored, since a harmonic ramp's
// curvature in beat-length space is what "rate moves at a constant pace"
// requires, not a free parameter.
func (m *Map) SetRateTarget(target, transitionBeats float64, shape ...float64) {
	m.prepareForNewSegment()
	m.curve.AppendHarmonicSegment(1/target, transitionBeats)
}

// SetTempoTarget schedules a transition of tempo to target over
// transitionBeats beats. See SetRateTarget: this converts to a target
// rate and defers to it, rather than to SetBeatLengthTarget, so tempo
// itself ramps linearly in time.
func (m *Map) SetTempoTarget(target, transitionBeats float64, shape ...float64) {
	m.SetRateTarget(target/60, transitionBeats, shape...)
}

// prepareForNewSegment brings the curve up to date before a new tempo
// segment is appended: anything scheduled beyond the current beat position
// is discarded, and if the curve's definition ends before the current
// position (we've been resting at a stable rate for a while) a constant
// segment extends it up to now. Without this, a tempo change set while
// idling at a stable rate would retroactively apply to the past instead of
// taking effect from the current beat forward.
func (m *Map) prepareForNewSegment() {
	m.curve.RemoveSegmentsAfter(m.beats)
	if m.curve.Length() < m.beats {
		m.curve.AppendSegment(m.curve.EndLevel(), m.beats-m.curve.Length())
	}
}

// GetWaitTime returns the parent-time it will take to advance by beats
// beats of this clock's own time, given the current tempo curve.
func (m *Map) GetWaitTime(beats float64) float64 {
	return m.curve.IntegrateInterval(m.beats, m.beats+beats)
}

// Advance commits beats beats of progress (and the parent-time it took) to
// the map's running totals. If waitTime is omitted, it is computed from
// the curve via GetWaitTime.
func (m *Map) Advance(beats float64, waitTime ...float64) {
	wt := 0.0
	if len(waitTime) > 0 {
		wt = waitTime[0]
	} else {
		wt = m.GetWaitTime(beats)
	}
	m.beats += beats
	m.t += wt
}
