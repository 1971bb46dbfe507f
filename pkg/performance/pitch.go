package performance

import "github.com/amane-labs/polyclock/pkg/curve"

// Pitch is the full shape performance_note.py allows for pitch: none (a
// rest), a single Value (number or envelope), or a chord: an ordered tuple
// of Values sounding together.
type Pitch struct {
	rest   bool
	chord  []Value // non-nil => chord; each member is number or envelope
	single Value   // meaningful only when !rest && chord == nil
}

// RestPitch is a pitch-less note (a rest).
func RestPitch() Pitch { return Pitch{rest: true} }

// NumberPitch wraps a plain MIDI-ish pitch number.
func NumberPitch(n float64) Pitch { return Pitch{single: NumberValue(n)} }

// EnvelopePitch wraps a pitch trajectory (a glissando).
func EnvelopePitch(c *curve.Curve) Pitch { return Pitch{single: EnvelopeValue(c)} }

// ChordPitch wraps an ordered tuple of pitches sounding together.
func ChordPitch(values ...Value) Pitch { return Pitch{chord: values} }

// IsRest reports whether this is a rest (no pitch).
func (p Pitch) IsRest() bool { return p.rest }

// IsChord reports whether this pitch is a chord, whatever its number of
// member values (a one-member or empty chord still counts).
func (p Pitch) IsChord() bool { return p.chord != nil }

// Single returns the non-chord pitch value. Meaningless (zero Value) if
// IsRest or IsChord is true.
func (p Pitch) Single() Value { return p.single }

// Chord returns the chord's member values. Nil if this isn't a chord.
func (p Pitch) Chord() []Value { return p.chord }

// Average returns performance_note.py's average_pitch(): the average of
// the chord members' Average() if this is a chord, this pitch's own
// Average() otherwise, and 0 for a rest (average_pitch on a rest is
// undefined in the original; callers are expected to check IsRest first).
func (p Pitch) Average() float64 {
	if p.rest {
		return 0
	}
	if p.chord != nil {
		sum := 0.0
		for _, v := range p.chord {
			sum += v.Average()
		}
		return sum / float64(len(p.chord))
	}
	return p.single.Average()
}

// AsAny returns the pitch in the shape a non-chord Instrument.PlayNote
// call expects: nil for a rest, float64 for a number, *curve.Curve for an
// envelope. Calling this on a chord pitch is a programmer error; use
// Chord() and PlayChord instead.
func (p Pitch) AsAny() any {
	if p.rest {
		return nil
	}
	return p.single.AsAny()
}

// splitAt splits a non-chord pitch envelope at x, or every member of a
// chord's envelopes at x. Plain numbers (and rests) pass through
// unchanged on both sides.
func (p Pitch) splitAt(x float64) (Pitch, Pitch) {
	switch {
	case p.rest:
		return p, p
	case p.chord != nil:
		left := make([]Value, len(p.chord))
		right := make([]Value, len(p.chord))
		for i, v := range p.chord {
			left[i], right[i] = v.splitAt(x)
		}
		return Pitch{chord: left}, Pitch{chord: right}
	default:
		l, r := p.single.splitAt(x)
		return Pitch{single: l}, Pitch{single: r}
	}
}
