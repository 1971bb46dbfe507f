package performance

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/amane-labs/polyclock/pkg/clock"
)

// Tie-related property keys recognized by downstream score rendering,
// written by SplitAtBeat. Names carried straight from
// performance_note.py's string literals.
const (
	PropertyStartsTie = "_starts_tie"
	PropertyEndsTie   = "_ends_tie"
	PropertySourceID  = "_source_id"
)

// sourceIDCounter backs the monotonically unique _source_id values
// SplitAtBeat assigns, replacing performance_note.py's itertools.count().
var sourceIDCounter atomic.Int64

// nextSourceID returns float64 (rather than int64) so that a note's
// _source_id survives a JSON round-trip unchanged: encoding/json decodes
// any bare JSON number into a map[string]any as float64, so assigning a
// float64 here up front avoids an int64-vs-float64 mismatch after
// to_json/from_json.
func nextSourceID() float64 { return float64(sourceIDCounter.Add(1)) }

// Note is one scheduled musical event: spec.md's PerformanceNote.
type Note struct {
	StartTime  float64
	Length     Length
	Pitch      Pitch
	Volume     Value
	Properties map[string]any
}

// New constructs a note with the given fields, allocating an empty
// Properties map if properties is nil.
func New(startTime float64, length Length, pitch Pitch, volume Value, properties map[string]any) Note {
	if properties == nil {
		properties = map[string]any{}
	}
	return Note{StartTime: startTime, Length: length, Pitch: pitch, Volume: volume, Properties: properties}
}

// LengthSum returns the note's total duration.
func (n Note) LengthSum() float64 { return n.Length.Sum() }

// EndTime returns StartTime + LengthSum().
func (n Note) EndTime() float64 { return n.StartTime + n.Length.Sum() }

// WithEndTime returns a copy of n with its end time changed to
// newEndTime, rescaling a tuple length's segments proportionally so their
// relative tie points are preserved. Mirrors performance_note.py's
// end_time setter (Go values are immutable-ish per spec.md's lifecycle
// note, so this returns rather than mutates).
func (n Note) WithEndTime(newEndTime float64) Note {
	newLength := newEndTime - n.StartTime
	oldSum := n.Length.Sum()
	if oldSum == 0 {
		n.Length = ScalarLength(newLength)
		return n
	}
	n.Length = n.Length.Rescale(newLength / oldSum)
	return n
}

// AveragePitch returns performance_note.py's average_pitch().
func (n Note) AveragePitch() float64 { return n.Pitch.Average() }

// Play dispatches this note to instrument's PlayNote or PlayChord,
// matching performance_note.py's play(). A rest (Pitch.IsRest()) is still
// forwarded as PlayNote with a nil pitch; the instrument collaborator
// decides what silence means.
func (n Note) Play(instrument Instrument, clk *clock.Clock, blocking bool) error {
	if n.Pitch.IsChord() {
		members := n.Pitch.Chord()
		pitches := make([]any, len(members))
		for i, v := range members {
			pitches[i] = v.AsAny()
		}
		return instrument.PlayChord(pitches, n.Volume.AsAny(), n.Length.AsAny(), n.Properties, clk, blocking)
	}
	return instrument.PlayNote(n.Pitch.AsAny(), n.Volume.AsAny(), n.Length.AsAny(), n.Properties, clk, blocking)
}

// SplitAtBeat splits n at splitBeat (an absolute beat position, not an
// offset from StartTime) into two notes that partition its length,
// pitch, and volume, returning an error if splitBeat does not fall
// strictly inside (StartTime, EndTime()). Mirrors
// performance_note.py's split_at_beat, adapted to return an error
// instead of silently returning the note unchanged: spec.md section 7
// lists an out-of-range split point as an invalid-argument error.
func (n Note) SplitAtBeat(splitBeat float64) (Note, Note, error) {
	if !(n.StartTime < splitBeat && splitBeat < n.EndTime()) {
		return Note{}, Note{}, fmt.Errorf("performance: split beat %g outside (%g, %g)", splitBeat, n.StartTime, n.EndTime())
	}

	relativeSplit := splitBeat - n.StartTime
	firstLength, secondLength, err := n.Length.splitAt(relativeSplit)
	if err != nil {
		return Note{}, Note{}, err
	}

	first := n
	first.Length = firstLength
	first.Properties = cloneProperties(n.Properties)

	second := n
	second.StartTime = splitBeat
	second.Length = secondLength
	second.Properties = cloneProperties(n.Properties)

	first.Volume, second.Volume = n.Volume.splitAt(relativeSplit)

	if !n.Pitch.IsRest() {
		first.Pitch, second.Pitch = n.Pitch.splitAt(relativeSplit)

		first.Properties[PropertyStartsTie] = true
		second.Properties[PropertyEndsTie] = true

		if id, ok := n.Properties[PropertySourceID]; ok {
			second.Properties[PropertySourceID] = id
		} else {
			id := nextSourceID()
			first.Properties[PropertySourceID] = id
			second.Properties[PropertySourceID] = id
		}
	}

	return first, second, nil
}

func cloneProperties(p map[string]any) map[string]any {
	cp := make(map[string]any, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

// Before reports whether n sorts before other by StartTime. Supports
// performance_note.py's __lt__, used to bisect a note list by start
// time.
func (n Note) Before(other Note) bool { return n.StartTime < other.StartTime }

// BisectInsertionIndex returns the index at which a note starting at
// startTime should be inserted into notes (sorted ascending by
// StartTime) to keep it sorted, matching performance_note.py's
// comparison-against-a-plain-number trick used to bisect with the
// standard library's bisect module.
func BisectInsertionIndex(notes []Note, startTime float64) int {
	return sort.Search(len(notes), func(i int) bool { return notes[i].StartTime >= startTime })
}
