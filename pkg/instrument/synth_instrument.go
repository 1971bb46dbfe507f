package instrument

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"gitlab.com/gomidi/midi/v2"

	"github.com/amane-labs/polyclock/pkg/clock"
	"github.com/amane-labs/polyclock/pkg/curve"
	"github.com/amane-labs/polyclock/pkg/logger"
)

// SynthInstrument is the reference implementation of
// performance.Instrument: it plays PerformanceNotes by driving a
// software wavetable synthesizer over MIDI note on/off messages and
// streaming the rendered audio, grounded on the teacher repo's
// NewMIDIPlayer (SoundFont loading, synthesizer settings, audio context
// wiring). It is illustrative, not a production softsynth (SPEC_FULL.md's
// Non-goals carry real-time audio synthesis fidelity out of scope): pitch
// envelopes are sampled once at note-on rather than rendered as a
// continuous pitch bend, since MIDI note-on is a single discrete pitch.
type SynthInstrument struct {
	synth   *meltysynth.Synthesizer
	bridge  *midiBridge
	player  *audio.Player
	channel byte
}

// NewSynthInstrument loads soundFontPath and builds a SynthInstrument
// that renders through audioCtx. If audioCtx is nil, a new one is
// created at SampleRate, mirroring the teacher's NewMIDIPlayer default.
func NewSynthInstrument(soundFontPath string, audioCtx *audio.Context) (*SynthInstrument, error) {
	data, err := os.ReadFile(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("instrument: read soundfont %s: %w", soundFontPath, err)
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("instrument: parse soundfont %s: %w", soundFontPath, err)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("instrument: create synthesizer: %w", err)
	}

	if audioCtx == nil {
		audioCtx = audio.NewContext(SampleRate)
	}

	stream := newSynthStream(synth)
	player, err := audioCtx.NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("instrument: create audio player: %w", err)
	}
	player.Play()

	logger.LogInfo("instrument: loaded soundfont %s", soundFontPath)

	return &SynthInstrument{
		synth:  synth,
		bridge: newMIDIBridge(synth),
		player: player,
	}, nil
}

// Close stops audio playback. The underlying synthesizer is left to be
// garbage collected.
func (s *SynthInstrument) Close() error {
	return s.player.Close()
}

// PlayNote implements performance.Instrument. A nil pitch is a rest: it
// still occupies length beats of clock time if blocking, but sounds
// nothing.
func (s *SynthInstrument) PlayNote(pitch, volume, length any, properties map[string]any, clk *clock.Clock, blocking bool) error {
	dur := durationOf(length)
	if pitch == nil {
		return s.holdSilently(dur, clk, blocking)
	}

	key := pitchToMIDIKey(pitch)
	velocity := volumeToVelocity(volume)

	if err := s.noteOn(key, velocity); err != nil {
		return err
	}
	if blocking && clk != nil {
		clk.Wait(dur)
	}
	return s.noteOff(key)
}

// PlayChord implements performance.Instrument, sounding every pitch
// together and releasing them together, matching
// performance_note.py's play() dispatching chords to instrument.play_chord.
func (s *SynthInstrument) PlayChord(pitches []any, volume, length any, properties map[string]any, clk *clock.Clock, blocking bool) error {
	dur := durationOf(length)
	velocity := volumeToVelocity(volume)

	keys := make([]byte, 0, len(pitches))
	for _, p := range pitches {
		if p == nil {
			continue
		}
		key := pitchToMIDIKey(p)
		if err := s.noteOn(key, velocity); err != nil {
			return err
		}
		keys = append(keys, key)
	}

	if blocking && clk != nil {
		clk.Wait(dur)
	}

	for _, key := range keys {
		if err := s.noteOff(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *SynthInstrument) holdSilently(dur float64, clk *clock.Clock, blocking bool) error {
	if blocking && clk != nil {
		clk.Wait(dur)
	}
	return nil
}

func (s *SynthInstrument) noteOn(key, velocity byte) error {
	return s.bridge.Write(midi.NoteOn(s.channel, key, velocity))
}

func (s *SynthInstrument) noteOff(key byte) error {
	return s.bridge.Write(midi.NoteOff(s.channel, key))
}

// pitchToMIDIKey converts a performance.Value.AsAny() shaped pitch
// (float64 or *curve.Curve) to a MIDI key 0-127, rounding to the
// nearest semitone and sampling an envelope at its start: MIDI note-on
// has no continuous pitch, so a gliss is rendered at its starting pitch
// only. Out-of-range results are clamped rather than rejected, since a
// slightly out-of-tune performance is preferable to a dropped note.
func pitchToMIDIKey(pitch any) byte {
	var p float64
	switch v := pitch.(type) {
	case float64:
		p = v
	case *curve.Curve:
		p = v.ValueAt(0)
	default:
		p = 60
	}
	rounded := math.Round(p)
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 127 {
		rounded = 127
	}
	return byte(rounded)
}

// volumeToVelocity converts a performance.Value.AsAny() shaped volume
// (expected in [0, 1]) to a MIDI velocity 1-127; a volume that would
// round to 0 gives 1.
func volumeToVelocity(volume any) byte {
	var v float64
	switch x := volume.(type) {
	case float64:
		v = x
	case *curve.Curve:
		v = x.AverageLevel()
	default:
		v = 0.8
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	vel := byte(math.Round(v * 127))
	if vel == 0 {
		vel = 1 // a zero-velocity NoteOn is a MIDI note-off in disguise
	}
	return vel
}

// durationOf converts a performance.Length.AsAny() shaped length
// (float64 or []float64) to a beat count, summing tuple segments.
func durationOf(length any) float64 {
	switch v := length.(type) {
	case float64:
		return v
	case []float64:
		total := 0.0
		for _, d := range v {
			total += d
		}
		return total
	default:
		return 0
	}
}
