package curve

import (
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestValueAt_FlatBeforeFirstSegment(t *testing.T) {
	c := New(2.5)
	if got := c.ValueAt(-10); got != 2.5 {
		t.Errorf("ValueAt(-10) = %v, want 2.5", got)
	}
	if got := c.ValueAt(0); got != 2.5 {
		t.Errorf("ValueAt(0) = %v, want 2.5", got)
	}
}

func TestValueAt_HoldsAtEndLevelBeyondLength(t *testing.T) {
	c := New(1.0)
	c.AppendSegment(3.0, 2.0)
	if got := c.ValueAt(100); got != 3.0 {
		t.Errorf("ValueAt(100) = %v, want 3.0", got)
	}
}

func TestValueAt_LinearSegmentMidpoint(t *testing.T) {
	c := New(0.0)
	c.AppendSegment(10.0, 4.0)
	if got := c.ValueAt(2); !almostEqual(got, 5.0, 1e-9) {
		t.Errorf("ValueAt(2) = %v, want 5.0", got)
	}
}

// TestValueAt_InstantaneousStepTakesEffectImmediately mirrors the scalar
// tempo-setter semantics: appending a zero-duration segment at the current
// position should make ValueAt(position) return the new level, not the
// old one the prior segment flattened out at.
func TestValueAt_InstantaneousStepTakesEffectImmediately(t *testing.T) {
	c := New(1.0)
	c.AppendSegment(1.0, 5.0) // flat hold at 1.0 until beat 5
	c.AppendSegment(9.0, 0)   // instantaneous jump to 9.0 at beat 5

	if got := c.ValueAt(5); got != 9.0 {
		t.Errorf("ValueAt(5) = %v, want 9.0 (the post-jump level)", got)
	}
	if got := c.ValueAt(4.999); !almostEqual(got, 1.0, 1e-9) {
		t.Errorf("ValueAt(4.999) = %v, want ~1.0 (pre-jump level)", got)
	}
}

func TestIntegrateInterval_ConstantLevel(t *testing.T) {
	c := New(4.0)
	// No segments at all: constant curve at the starting level everywhere.
	if got := c.IntegrateInterval(0, 10); !almostEqual(got, 40.0, 1e-9) {
		t.Errorf("IntegrateInterval(0,10) = %v, want 40.0", got)
	}
}

func TestIntegrateInterval_LinearSegmentMatchesTrapezoid(t *testing.T) {
	c := New(2.0)
	c.AppendSegment(6.0, 4.0) // 2 -> 6 linearly over 4 beats; average 4, total 16
	if got := c.IntegrateInterval(0, 4); !almostEqual(got, 16.0, 1e-9) {
		t.Errorf("IntegrateInterval(0,4) = %v, want 16.0", got)
	}
}

func TestIntegrateInterval_Antisymmetric(t *testing.T) {
	c := New(1.0)
	c.AppendSegment(5.0, 3.0, 2.0)
	a, b := 0.5, 2.5
	if got, want := c.IntegrateInterval(a, b), -c.IntegrateInterval(b, a); !almostEqual(got, want, 1e-9) {
		t.Errorf("IntegrateInterval(a,b) = %v, want %v = -IntegrateInterval(b,a)", got, want)
	}
}

func TestRemoveSegmentsAfter_TruncatesMidSegment(t *testing.T) {
	c := New(0.0)
	c.AppendSegment(10.0, 10.0)
	c.RemoveSegmentsAfter(4.0)
	if got := c.Length(); !almostEqual(got, 4.0, 1e-9) {
		t.Errorf("Length() = %v, want 4.0", got)
	}
	if got := c.EndLevel(); !almostEqual(got, 4.0, 1e-9) {
		t.Errorf("EndLevel() = %v, want 4.0", got)
	}
}

func TestSplitAt_RecombinesToOriginalValues(t *testing.T) {
	c := New(1.0)
	c.AppendSegment(9.0, 8.0, 1.5)

	left, right := c.SplitAt(3.0)

	for x := 0.0; x <= 3.0; x += 0.5 {
		if got, want := left.ValueAt(x), c.ValueAt(x); !almostEqual(got, want, 1e-9) {
			t.Errorf("left.ValueAt(%v) = %v, want %v", x, got, want)
		}
	}
	for x := 0.0; x <= 5.0; x += 0.5 {
		if got, want := right.ValueAt(x), c.ValueAt(x+3.0); !almostEqual(got, want, 1e-9) {
			t.Errorf("right.ValueAt(%v) = %v, want %v", x, got, want)
		}
	}
}

// TestAppendHarmonicSegment_IntegralMatchesReciprocalLinearRate mirrors
// spec.md's S2 scenario directly against the curve primitive: a harmonic
// segment from beat-length 1 to 0.5 (rate 1 -> 2) over 10 beats should
// integrate to 10*ln(2), the value a beat-length-linear segment would not
// produce.
func TestAppendHarmonicSegment_IntegralMatchesReciprocalLinearRate(t *testing.T) {
	c := New(1.0)
	c.AppendHarmonicSegment(0.5, 10)

	got := c.IntegrateInterval(0, 10)
	want := 10 * math.Log(2)
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("IntegrateInterval(0,10) = %v, want %v (10*ln2)", got, want)
	}
}

func TestSplitAt_HarmonicSegmentRecombinesToOriginalValues(t *testing.T) {
	c := New(1.0)
	c.AppendHarmonicSegment(0.5, 10)

	left, right := c.SplitAt(4.0)

	for x := 0.0; x <= 4.0; x += 0.5 {
		if got, want := left.ValueAt(x), c.ValueAt(x); !almostEqual(got, want, 1e-9) {
			t.Errorf("left.ValueAt(%v) = %v, want %v", x, got, want)
		}
	}
	for x := 0.0; x <= 6.0; x += 0.5 {
		if got, want := right.ValueAt(x), c.ValueAt(x+4.0); !almostEqual(got, want, 1e-9) {
			t.Errorf("right.ValueAt(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := New(1.0)
	c.AppendSegment(5.0, 2.0, 0.7)
	c.AppendSegment(3.0, 1.0)

	data, err := c.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	restored, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	for x := 0.0; x <= 3.0; x += 0.25 {
		if got, want := restored.ValueAt(x), c.ValueAt(x); !almostEqual(got, want, 1e-9) {
			t.Errorf("restored.ValueAt(%v) = %v, want %v", x, got, want)
		}
	}
}

// TestJSONRoundTrip_OmitsHarmonicSegmentsWhenAbsent checks that an ordinary
// curve (no harmonic segments, e.g. a pitch/volume envelope) serializes
// without a harmonic_segments field at all, so existing JSON consumers that
// don't know about tempo ramps see no shape change.
func TestJSONRoundTrip_OmitsHarmonicSegmentsWhenAbsent(t *testing.T) {
	c := New(1.0)
	c.AppendSegment(5.0, 2.0, 0.7)

	data, err := c.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if strings.Contains(string(data), "harmonic_segments") {
		t.Errorf("ToJSON() = %s, want no harmonic_segments field for an all-ordinary curve", data)
	}
}

// TestJSONRoundTrip_HarmonicSegment checks that a curve containing a
// harmonic segment (as TempoMap's rate/tempo target setters produce) round
// trips through JSON with its reciprocal-linear behavior intact.
func TestJSONRoundTrip_HarmonicSegment(t *testing.T) {
	c := New(1.0)
	c.AppendHarmonicSegment(0.5, 10)
	c.AppendSegment(0.5, 2.0, 1.2) // a trailing ordinary segment too

	data, err := c.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if !strings.Contains(string(data), "harmonic_segments") {
		t.Errorf("ToJSON() = %s, want a harmonic_segments field", data)
	}
	restored, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	for x := 0.0; x <= 12.0; x += 0.5 {
		if got, want := restored.ValueAt(x), c.ValueAt(x); !almostEqual(got, want, 1e-9) {
			t.Errorf("restored.ValueAt(%v) = %v, want %v", x, got, want)
		}
	}
	if got, want := restored.IntegrateInterval(0, 10), 10*math.Log(2); !almostEqual(got, want, 1e-9) {
		t.Errorf("restored.IntegrateInterval(0,10) = %v, want %v (10*ln2)", got, want)
	}
}

// TestProperty_IntegrationMatchesSumOfParts checks that integrating over a
// whole interval equals integrating over two adjoining sub-intervals, for
// randomly generated single-segment curves and split points. This is the
// additivity law the tempo integration law in spec.md section 8 relies on.
func TestProperty_IntegrationMatchesSumOfParts(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integral splits additively at any interior point", prop.ForAll(
		func(start, end, duration, shape, splitFraction float64) bool {
			if duration <= 0.01 || duration > 1000 {
				return true
			}
			if math.Abs(shape) > 5 {
				return true
			}
			if splitFraction <= 0 || splitFraction >= 1 {
				return true
			}

			c := New(start)
			c.AppendSegment(end, duration, shape)

			splitAt := duration * splitFraction
			whole := c.IntegrateInterval(0, duration)
			parts := c.IntegrateInterval(0, splitAt) + c.IntegrateInterval(splitAt, duration)

			return almostEqual(whole, parts, 1e-6*math.Max(1, math.Abs(whole)))
		},
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(-5, 5),
		gen.Float64Range(0.001, 0.999),
	))

	properties.TestingRun(t)
}

// TestProperty_ConstantSegmentIntegratesLinearly pins down the simplest
// case of the tempo integration law: a segment with equal start and end
// level integrates to level*duration regardless of curve shape.
func TestProperty_ConstantSegmentIntegratesLinearly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a level segment integrates to level*duration", prop.ForAll(
		func(level, duration, shape float64) bool {
			if duration <= 0 || duration > 1000 {
				return true
			}
			c := New(level)
			c.AppendSegment(level, duration, shape)
			got := c.IntegrateInterval(0, duration)
			want := level * duration
			return almostEqual(got, want, 1e-6*math.Max(1, math.Abs(want)))
		},
		gen.Float64Range(-50, 50),
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(-5, 5),
	))

	properties.TestingRun(t)
}
