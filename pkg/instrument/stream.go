// Package instrument provides the reference Instrument implementation the
// clock tree plays PerformanceNotes through: spec.md section 6's
// external "instrument collaborator". SynthInstrument renders MIDI note
// on/off events through a software wavetable synthesizer and streams the
// result to real audio output, grounded directly on the teacher repo's
// pkg/engine/midi_player.go (MIDIBridge, the render-to-int16-PCM Read
// loop) and pkg/vm/audio/midi.go (the same pattern factored into its own
// package), generalized from "play back a parsed MIDI file" to "play
// back notes forked clock voices hand me one at a time".
package instrument

import (
	"encoding/binary"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// SampleRate is the audio sample rate used for synthesis, matching the
// teacher's pkg/vm/audio.SampleRate.
const SampleRate = 44100

// synthStream implements io.Reader for ebiten/v2/audio, rendering PCM
// samples from a meltysynth.Synthesizer on demand exactly as the teacher
// repo's MIDIStream does, except it never goes silent-on-stop: a
// SynthInstrument's synthesizer keeps running for as long as any voice
// might still call PlayNote.
type synthStream struct {
	synth *meltysynth.Synthesizer
	mu    sync.Mutex
}

func newSynthStream(synth *meltysynth.Synthesizer) *synthStream {
	return &synthStream{synth: synth}
}

// Read renders len(p)/4 stereo 16-bit samples (4 bytes/frame) from the
// synthesizer, converting meltysynth's float32 buffers to the
// interleaved little-endian PCM ebiten/v2/audio expects.
func (s *synthStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.synth.Render(left, right)

	for i := range samples {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return len(p), nil
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
