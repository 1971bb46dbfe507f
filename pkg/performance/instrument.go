package performance

import "github.com/amane-labs/polyclock/pkg/clock"

// Instrument is the External Interfaces collaborator spec.md section 6
// requires: anything a Note can be Play()ed through. Pitch/volume/length
// arguments arrive exactly as Value.AsAny()/Length.AsAny() produce them
// (float64, *curve.Curve, or []float64) so an Instrument implementation
// stays decoupled from this package's internal Pitch/Length/Value types,
// mirroring how scamp's instrument.play_note accepts whatever shape the
// caller passes through untouched.
type Instrument interface {
	PlayNote(pitch, volume, length any, properties map[string]any, clk *clock.Clock, blocking bool) error
	PlayChord(pitches []any, volume, length any, properties map[string]any, clk *clock.Clock, blocking bool) error
}
