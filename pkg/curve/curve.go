// Package curve implements the ParameterCurve/Envelope primitive the clock
// and performance packages are built on: a piecewise function of one
// variable supporting point evaluation, interval integration, appending and
// truncating segments, and splitting. spec.md treats this as an external
// collaborator (component C2); SPEC_FULL.md calls for a concrete
// implementation so the module is self-contained, grounded on the shape
// of scamp's ParameterCurve (source/clock.py's TempoMap embeds one) and on
// the External Interfaces section of spec.md.
package curve

import (
	"encoding/json"
	"fmt"
)

// Curve is a piecewise curve, defined on [0, Length()]. Before the first
// segment is appended its value is a flat startLevel everywhere; beyond the
// last segment its value holds flat at EndLevel.
//
// Curve is not safe for concurrent use without external synchronization;
// per spec.md's Open Questions, tempo-map style callers are expected to be
// single-writer.
type Curve struct {
	startLevel float64
	segments   []segment
}

// New creates a curve with no segments and the given starting level.
func New(startLevel float64) *Curve {
	return &Curve{startLevel: startLevel}
}

// Clone returns a deep copy of the curve.
func (c *Curve) Clone() *Curve {
	segs := make([]segment, len(c.segments))
	copy(segs, c.segments)
	return &Curve{startLevel: c.startLevel, segments: segs}
}

// Length returns the total duration of all segments, i.e. the x-value at
// which the curve stops being explicitly defined.
func (c *Curve) Length() float64 {
	total := 0.0
	for _, s := range c.segments {
		total += s.duration
	}
	return total
}

// EndLevel returns the curve's value at the end of its last segment, or
// the starting level if there are no segments yet.
func (c *Curve) EndLevel() float64 {
	if len(c.segments) == 0 {
		return c.startLevel
	}
	return c.segments[len(c.segments)-1].endLevel
}

// ValueAt evaluates the curve at x. x before 0 clamps to the starting
// level; x beyond Length() holds flat at EndLevel().
//
// At a boundary shared by a chain of zero-duration segments (the
// instantaneous "step" a tempo map's scalar setters produce), ValueAt
// returns the value after the last of them: a zero-duration segment
// represents an already-completed jump to its end level, not an
// interior point still in transit.
func (c *Curve) ValueAt(x float64) float64 {
	if len(c.segments) == 0 {
		return c.startLevel
	}
	if x < 0 {
		return c.segments[0].startLevel
	}
	offset := 0.0
	for i, s := range c.segments {
		segStart := offset
		segEnd := offset + s.duration
		offset = segEnd
		if x < segEnd {
			return s.valueAt(x - segStart)
		}
		if x == segEnd {
			result := s.valueAt(x - segStart)
			for j := i + 1; j < len(c.segments) && c.segments[j].duration == 0; j++ {
				result = c.segments[j].endLevel
			}
			return result
		}
	}
	return c.segments[len(c.segments)-1].endLevel
}

// IntegrateInterval returns the definite integral of the curve over [a, b].
// It is valid for any a, b (including a > b, or bounds outside the curve's
// defined domain): regions before 0 integrate at startLevel, regions
// beyond Length() integrate at EndLevel().
func (c *Curve) IntegrateInterval(a, b float64) float64 {
	if a > b {
		return -c.IntegrateInterval(b, a)
	}
	if a == b {
		return 0
	}

	total := 0.0
	length := c.Length()

	if a < 0 {
		hi := b
		if hi > 0 {
			hi = 0
		}
		if hi > a {
			total += c.startLevelOrFirst() * (hi - a)
		}
	}

	offset := 0.0
	for _, s := range c.segments {
		segStart := offset
		segEnd := offset + s.duration
		offset = segEnd
		lo := a
		if segStart > lo {
			lo = segStart
		}
		hi := b
		if segEnd < hi {
			hi = segEnd
		}
		if hi > lo {
			total += s.integrate(lo-segStart, hi-segStart)
		}
	}

	if b > length {
		lo := a
		if length > lo {
			lo = length
		}
		if b > lo {
			total += c.EndLevel() * (b - lo)
		}
	}

	return total
}

func (c *Curve) startLevelOrFirst() float64 {
	if len(c.segments) > 0 {
		return c.segments[0].startLevel
	}
	return c.startLevel
}

// AppendSegment appends a segment running from the curve's current
// EndLevel() to targetLevel over duration x-units, with an optional curve
// shape (0, the default, is linear). A negative duration is treated as an
// instantaneous step, consistent with the scalar setter semantics spec.md
// section 7 describes for tempo setters.
func (c *Curve) AppendSegment(targetLevel, duration float64, shape ...float64) {
	s := 0.0
	if len(shape) > 0 {
		s = shape[0]
	}
	if duration < 0 {
		duration = 0
	}
	c.segments = append(c.segments, segment{
		startLevel: c.EndLevel(),
		endLevel:   targetLevel,
		duration:   duration,
		shape:      s,
	})
}

// AppendHarmonicSegment appends a segment running from the curve's
// current EndLevel() to targetLevel over duration x-units whose
// reciprocal (1/value), rather than the value itself, moves linearly.
// TempoMap's rate/tempo target setters use this instead of AppendSegment
// so that rate and tempo themselves change at a constant pace, per
// spec.md section 8's S2 scenario. A negative duration is treated as an
// instantaneous step, matching AppendSegment's convention.
func (c *Curve) AppendHarmonicSegment(targetLevel, duration float64) {
	if duration < 0 {
		duration = 0
	}
	c.segments = append(c.segments, segment{
		startLevel: c.EndLevel(),
		endLevel:   targetLevel,
		duration:   duration,
		harmonic:   true,
	})
}

// RemoveSegmentsAfter truncates the curve so nothing remains defined past
// x: segments entirely beyond x are dropped, and a segment straddling x is
// split and only its left half kept.
func (c *Curve) RemoveSegmentsAfter(x float64) {
	if x < 0 {
		x = 0
	}
	offset := 0.0
	kept := make([]segment, 0, len(c.segments))
	for _, s := range c.segments {
		segStart := offset
		segEnd := offset + s.duration
		offset = segEnd
		if segStart >= x {
			break
		}
		if segEnd <= x {
			kept = append(kept, s)
			continue
		}
		left, _ := s.split(x - segStart)
		kept = append(kept, left)
		break
	}
	c.segments = kept
}

// SplitAt divides the curve into two curves at absolute position x: the
// left curve covers [0, x], the right curve covers what was [x, Length()]
// renumbered to start at 0. A segment straddling x is itself split so both
// halves reproduce the original curve exactly.
func (c *Curve) SplitAt(x float64) (*Curve, *Curve) {
	length := c.Length()
	if x <= 0 {
		return New(c.startLevelOrFirst()), c.Clone()
	}
	if x >= length {
		return c.Clone(), New(c.EndLevel())
	}

	offset := 0.0
	var leftSegs, rightSegs []segment
	for _, s := range c.segments {
		segStart := offset
		segEnd := offset + s.duration
		offset = segEnd
		switch {
		case segEnd <= x:
			leftSegs = append(leftSegs, s)
		case segStart >= x:
			rightSegs = append(rightSegs, s)
		default:
			l, r := s.split(x - segStart)
			leftSegs = append(leftSegs, l)
			rightSegs = append(rightSegs, r)
		}
	}

	left := &Curve{startLevel: c.startLevel, segments: leftSegs}
	rightStart := c.EndLevel()
	if len(leftSegs) > 0 {
		rightStart = leftSegs[len(leftSegs)-1].endLevel
	} else if len(rightSegs) > 0 {
		rightStart = rightSegs[0].startLevel
	}
	right := &Curve{startLevel: rightStart, segments: rightSegs}
	return left, right
}

// AverageLevel returns the time-weighted average of the curve over its
// defined domain [0, Length()]. A curve with no length (no segments, or
// all zero-duration) averages to its EndLevel().
func (c *Curve) AverageLevel() float64 {
	length := c.Length()
	if length <= 0 {
		return c.EndLevel()
	}
	return c.IntegrateInterval(0, length) / length
}

// curveJSON mirrors the levels/durations/curve_shapes shape scamp's own
// Envelope serialization uses: levels has one more entry than durations
// and curve_shapes (the starting level, then each segment's end level).
// HarmonicSegments is omitted entirely when no segment is harmonic (the
// common case for a plain pitch/volume envelope), so the JSON shape for
// an ordinary curve is unchanged; a TempoMap built from a rate/tempo
// target setter sets the flag for the segments AppendHarmonicSegment
// created.
type curveJSON struct {
	Levels           []float64 `json:"levels"`
	Durations        []float64 `json:"durations"`
	CurveShapes      []float64 `json:"curve_shapes"`
	HarmonicSegments []bool    `json:"harmonic_segments,omitempty"`
}

// ToJSON serializes the curve.
func (c *Curve) ToJSON() ([]byte, error) {
	levels := make([]float64, len(c.segments)+1)
	durations := make([]float64, len(c.segments))
	shapes := make([]float64, len(c.segments))
	var harmonic []bool
	levels[0] = c.startLevel
	for i, s := range c.segments {
		levels[i+1] = s.endLevel
		durations[i] = s.duration
		shapes[i] = s.shape
		if s.harmonic {
			if harmonic == nil {
				harmonic = make([]bool, len(c.segments))
			}
			harmonic[i] = true
		}
	}
	return json.Marshal(curveJSON{Levels: levels, Durations: durations, CurveShapes: shapes, HarmonicSegments: harmonic})
}

// MarshalJSON implements json.Marshaler.
func (c *Curve) MarshalJSON() ([]byte, error) {
	return c.ToJSON()
}

// FromJSON deserializes a curve previously produced by ToJSON.
func FromJSON(data []byte) (*Curve, error) {
	var raw curveJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("curve: invalid JSON: %w", err)
	}
	if len(raw.Levels) == 0 {
		return nil, fmt.Errorf("curve: JSON must have at least one level")
	}
	if len(raw.Levels) != len(raw.Durations)+1 || len(raw.Durations) != len(raw.CurveShapes) {
		return nil, fmt.Errorf("curve: levels/durations/curve_shapes length mismatch")
	}
	if len(raw.HarmonicSegments) != 0 && len(raw.HarmonicSegments) != len(raw.Durations) {
		return nil, fmt.Errorf("curve: harmonic_segments length mismatch")
	}
	c := New(raw.Levels[0])
	for i, d := range raw.Durations {
		if len(raw.HarmonicSegments) != 0 && raw.HarmonicSegments[i] {
			c.AppendHarmonicSegment(raw.Levels[i+1], d)
			continue
		}
		c.AppendSegment(raw.Levels[i+1], d, raw.CurveShapes[i])
	}
	return c, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Curve) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}
