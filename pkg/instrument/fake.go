package instrument

import (
	"sync"

	"github.com/amane-labs/polyclock/pkg/clock"
)

// Event records one PlayNote or PlayChord call, for tests and
// integration harnesses that want to assert what a clock tree played
// without needing real audio output.
type Event struct {
	Chord      bool
	Pitch      any
	Pitches    []any
	Volume     any
	Length     any
	Properties map[string]any
}

// RecordingInstrument is a no-op performance.Instrument backend: it
// records every call instead of making sound, still honoring the
// blocking contract (advancing clk by the note's length when blocking is
// true) so a clock tree driven through it behaves identically to one
// driven through SynthInstrument from the rendezvous protocol's point of
// view. This is the "fake/no-op backend for unit tests that don't want
// real audio" SPEC_FULL.md calls for.
type RecordingInstrument struct {
	mu     sync.Mutex
	Events []Event
}

// PlayNote implements performance.Instrument.
func (r *RecordingInstrument) PlayNote(pitch, volume, length any, properties map[string]any, clk *clock.Clock, blocking bool) error {
	r.mu.Lock()
	r.Events = append(r.Events, Event{Pitch: pitch, Volume: volume, Length: length, Properties: properties})
	r.mu.Unlock()

	if blocking && clk != nil {
		clk.Wait(durationOf(length))
	}
	return nil
}

// PlayChord implements performance.Instrument.
func (r *RecordingInstrument) PlayChord(pitches []any, volume, length any, properties map[string]any, clk *clock.Clock, blocking bool) error {
	r.mu.Lock()
	r.Events = append(r.Events, Event{Chord: true, Pitches: pitches, Volume: volume, Length: length, Properties: properties})
	r.mu.Unlock()

	if blocking && clk != nil {
		clk.Wait(durationOf(length))
	}
	return nil
}
