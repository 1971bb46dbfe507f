package performance

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/amane-labs/polyclock/pkg/curve"
)

// chordSentinel tags a JSON pitch array as a chord rather than an
// ambiguous plain list, per spec.md section 6: JSON has no tuple type
// distinct from an array, so performance_note.py's to_json/from_json
// insert a leading "chord" marker; this mirrors that exactly.
const chordSentinel = "chord"

type noteJSON struct {
	StartTime  float64         `json:"start_time"`
	Length     json.RawMessage `json:"length"`
	Pitch      json.RawMessage `json:"pitch"`
	Volume     json.RawMessage `json:"volume"`
	Properties map[string]any  `json:"properties"`
}

// MarshalJSON implements json.Marshaler, matching spec.md section 6's
// PerformanceNote JSON schema.
func (n Note) MarshalJSON() ([]byte, error) {
	lengthRaw, err := json.Marshal(n.Length.AsAny())
	if err != nil {
		return nil, fmt.Errorf("performance: marshal length: %w", err)
	}
	pitchRaw, err := marshalPitch(n.Pitch)
	if err != nil {
		return nil, fmt.Errorf("performance: marshal pitch: %w", err)
	}
	volumeRaw, err := json.Marshal(n.Volume.AsAny())
	if err != nil {
		return nil, fmt.Errorf("performance: marshal volume: %w", err)
	}
	return json.Marshal(noteJSON{
		StartTime:  n.StartTime,
		Length:     lengthRaw,
		Pitch:      pitchRaw,
		Volume:     volumeRaw,
		Properties: n.Properties,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("performance: invalid note JSON: %w", err)
	}

	length, err := decodeLength(raw.Length)
	if err != nil {
		return err
	}
	pitch, err := decodePitch(raw.Pitch)
	if err != nil {
		return err
	}
	volume, err := decodeValue(raw.Volume)
	if err != nil {
		return err
	}

	*n = Note{
		StartTime:  raw.StartTime,
		Length:     length,
		Pitch:      pitch,
		Volume:     volume,
		Properties: raw.Properties,
	}
	return nil
}

func marshalPitch(p Pitch) (json.RawMessage, error) {
	switch {
	case p.IsRest():
		return json.Marshal(nil)
	case p.IsChord():
		items := make([]any, 0, len(p.Chord())+1)
		items = append(items, chordSentinel)
		for _, v := range p.Chord() {
			items = append(items, v.AsAny())
		}
		return json.Marshal(items)
	default:
		return json.Marshal(p.Single().AsAny())
	}
}

// isJSONObject reports whether raw's first non-whitespace byte opens a
// JSON object, the shape curve.Curve.ToJSON produces. Used to tell an
// envelope apart from a plain number/array without attempting a full
// parse first.
func isJSONObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

func isJSONArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeValue(raw json.RawMessage) (Value, error) {
	if isJSONObject(raw) {
		c, err := curve.FromJSON(raw)
		if err != nil {
			return Value{}, fmt.Errorf("performance: decode envelope value: %w", err)
		}
		return EnvelopeValue(c), nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return Value{}, fmt.Errorf("performance: decode numeric value: %w", err)
	}
	return NumberValue(n), nil
}

func decodeLength(raw json.RawMessage) (Length, error) {
	if isJSONArray(raw) {
		var segs []float64
		if err := json.Unmarshal(raw, &segs); err != nil {
			return Length{}, fmt.Errorf("performance: decode tuple length: %w", err)
		}
		return TupleLength(segs...), nil
	}
	var d float64
	if err := json.Unmarshal(raw, &d); err != nil {
		return Length{}, fmt.Errorf("performance: decode scalar length: %w", err)
	}
	return ScalarLength(d), nil
}

func decodePitch(raw json.RawMessage) (Pitch, error) {
	if len(raw) == 0 || isJSONNull(raw) {
		return RestPitch(), nil
	}
	if isJSONArray(raw) {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Pitch{}, fmt.Errorf("performance: decode chord pitch: %w", err)
		}
		if len(items) == 0 {
			return Pitch{}, fmt.Errorf("performance: empty pitch array")
		}
		var tag string
		if err := json.Unmarshal(items[0], &tag); err != nil || tag != chordSentinel {
			return Pitch{}, fmt.Errorf("performance: pitch array missing %q sentinel", chordSentinel)
		}
		members := make([]Value, len(items)-1)
		for i, item := range items[1:] {
			v, err := decodeValue(item)
			if err != nil {
				return Pitch{}, err
			}
			members[i] = v
		}
		return ChordPitch(members...), nil
	}
	v, err := decodeValue(raw)
	if err != nil {
		return Pitch{}, err
	}
	if v.IsEnvelope() {
		return EnvelopePitch(v.Envelope()), nil
	}
	return NumberPitch(v.Number()), nil
}
