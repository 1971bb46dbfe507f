// Package performance implements the PerformanceNote value type (spec.md
// component C6): one scheduled musical event, carrying a start time, a
// length (scalar or tied-segment tuple), a pitch (rest, number, envelope,
// or chord of either), a volume (number or envelope), and a free-form
// property bag. Grounded on source/performance_note.py's PerformanceNote,
// kept in the teacher repo's idiom of small value types with explicit
// JSON marshaling (pkg/title/title.go's FILLY value types follow the same
// shape-detection-on-unmarshal pattern this package uses for Pitch).
package performance

import "github.com/amane-labs/polyclock/pkg/curve"

// Value is a number-or-envelope quantity: the shape spec.md uses for
// volume, and for a single (non-chord) pitch.
type Value struct {
	envelope *curve.Curve // non-nil means this value is an envelope
	number   float64      // meaningful only when envelope == nil
}

// NumberValue wraps a plain numeric value.
func NumberValue(n float64) Value { return Value{number: n} }

// EnvelopeValue wraps an envelope curve.
func EnvelopeValue(c *curve.Curve) Value { return Value{envelope: c} }

// IsEnvelope reports whether this value carries a trajectory rather than a
// single number.
func (v Value) IsEnvelope() bool { return v.envelope != nil }

// Envelope returns the underlying curve, or nil if this is a plain number.
func (v Value) Envelope() *curve.Curve { return v.envelope }

// Number returns the underlying number. Calling it on an envelope value
// returns 0; check IsEnvelope first.
func (v Value) Number() float64 { return v.number }

// Average returns the envelope's time-weighted average level, or the
// number itself if this isn't an envelope. Mirrors
// performance_note.py's use of average_level() for average_pitch().
func (v Value) Average() float64 {
	if v.envelope != nil {
		return v.envelope.AverageLevel()
	}
	return v.number
}

// ValueAt samples the value at envelope position x, or returns the plain
// number regardless of x if this isn't an envelope.
func (v Value) ValueAt(x float64) float64 {
	if v.envelope != nil {
		return v.envelope.ValueAt(x)
	}
	return v.number
}

// AsAny returns the value in the shape an Instrument collaborator expects:
// a float64 for a plain number, or a *curve.Curve for an envelope.
func (v Value) AsAny() any {
	if v.envelope != nil {
		return v.envelope
	}
	return v.number
}

// splitAt splits an envelope value at x (envelope beats from its own
// start); a plain number is unaffected and returned unchanged on both
// sides, matching performance_note.py's split_at_beat (which only splits
// when pitch/volume is itself an Envelope).
func (v Value) splitAt(x float64) (Value, Value) {
	if v.envelope == nil {
		return v, v
	}
	left, right := v.envelope.SplitAt(x)
	return EnvelopeValue(left), EnvelopeValue(right)
}
