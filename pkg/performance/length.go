package performance

import "fmt"

// Length is a note's duration: either a single scalar, or an ordered
// tuple of segment durations summing to the total (marking pre-split tie
// points, per spec.md section 3). Grounded on
// performance_note.py's length_sum/_split_length, which distinguish the
// two by whether length has a __len__.
type Length struct {
	segments []float64 // nil => scalar; non-nil (len >= 1) => tuple
	scalar   float64    // meaningful only when segments == nil
}

// ScalarLength is a single-duration length.
func ScalarLength(d float64) Length { return Length{scalar: d} }

// TupleLength is an ordered tuple of tie-point segment durations.
func TupleLength(segments ...float64) Length {
	cp := make([]float64, len(segments))
	copy(cp, segments)
	return Length{segments: cp}
}

// IsTuple reports whether this length is a tuple of segments rather than
// a single scalar.
func (l Length) IsTuple() bool { return l.segments != nil }

// Segments returns the tuple's segment durations. Nil if this is a
// scalar length.
func (l Length) Segments() []float64 { return l.segments }

// Sum returns the total length: the sum of segments for a tuple, the
// scalar itself otherwise. Mirrors length_sum().
func (l Length) Sum() float64 {
	if l.segments == nil {
		return l.scalar
	}
	total := 0.0
	for _, s := range l.segments {
		total += s
	}
	return total
}

// Rescale returns a length of the same shape scaled by factor, used when
// PerformanceNote's end_time setter changes the total length and the
// tuple's proportions must be preserved.
func (l Length) Rescale(factor float64) Length {
	if l.segments == nil {
		return ScalarLength(l.scalar * factor)
	}
	scaled := make([]float64, len(l.segments))
	for i, s := range l.segments {
		scaled[i] = s * factor
	}
	return Length{segments: scaled}
}

// AsAny returns the length in the shape an Instrument collaborator
// expects: float64 for a scalar, []float64 for a tuple.
func (l Length) AsAny() any {
	if l.segments == nil {
		return l.scalar
	}
	return l.segments
}

// splitAt splits length at splitPoint (a duration measured from the
// start of the note), returning the two resulting lengths. A length-1
// result tuple collapses to a scalar, matching _split_length's
// "first_part if len(first_part) > 1 else first_part[0]".
func (l Length) splitAt(splitPoint float64) (Length, Length, error) {
	if l.segments == nil {
		if !(0 < splitPoint && splitPoint < l.scalar) {
			return Length{}, Length{}, fmt.Errorf("performance: split point %g outside length %g", splitPoint, l.scalar)
		}
		return ScalarLength(splitPoint), ScalarLength(l.scalar - splitPoint), nil
	}

	partSum := 0.0
	for i, seg := range l.segments {
		switch {
		case partSum+seg < splitPoint:
			partSum += seg
		case partSum+seg == splitPoint:
			return collapse(l.segments[:i+1]), collapse(l.segments[i+1:]), nil
		default:
			first := append(append([]float64{}, l.segments[:i]...), splitPoint-partSum)
			second := append([]float64{partSum + seg - splitPoint}, l.segments[i+1:]...)
			return collapse(first), collapse(second), nil
		}
	}
	return Length{}, Length{}, fmt.Errorf("performance: split point %g outside length tuple", splitPoint)
}

// collapse returns a scalar Length if segs has exactly one element, a
// tuple Length otherwise.
func collapse(segs []float64) Length {
	if len(segs) == 1 {
		return ScalarLength(segs[0])
	}
	return TupleLength(segs...)
}
