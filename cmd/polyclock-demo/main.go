// Command polyclock-demo builds a master Clock, forks a couple of child
// voices onto it, and plays a short generated performance through
// pkg/instrument.SynthInstrument (or, with no SoundFont configured, a
// silent recording instrument). This is the "demo program" spec.md
// places out of scope for the core library; SPEC_FULL.md calls for it
// the way the teacher repo ships cmd/son-et alongside pkg/engine.
package main

import (
	"fmt"
	"os"

	"github.com/amane-labs/polyclock/pkg/clock"
	"github.com/amane-labs/polyclock/pkg/instrument"
	"github.com/amane-labs/polyclock/pkg/logger"
	"github.com/amane-labs/polyclock/pkg/performance"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "polyclock-demo:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	config, err := ParseArgs(args)
	if err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	if err := logger.InitLogger(config.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	inst, closeInst, err := buildInstrument(config.SoundFontPath)
	if err != nil {
		return fmt.Errorf("build instrument: %w", err)
	}
	defer closeInst()

	master := clock.NewMaster(clock.WithName("master"))
	master.SetTempo(config.Tempo)
	logger.LogInfo("master clock running at %.1f bpm", master.Tempo())

	master.Fork(func(voice *clock.Clock) {
		playMelody(voice, inst, melodyA())
	})
	master.Fork(func(voice *clock.Clock) {
		voice.SetRate(voice.Rate() * 2) // a faster-moving second voice
		playMelody(voice, inst, melodyB())
	})

	master.WaitForChildrenToFinish()
	logger.LogInfo("performance finished after %.3f master seconds", master.Time())
	return nil
}

// buildInstrument returns a SynthInstrument if soundFontPath is set, or a
// silent RecordingInstrument otherwise (so the demo still runs on a
// machine with no SoundFont handy; the recording instrument keeps the
// notes it is given in memory and does not log them).
func buildInstrument(soundFontPath string) (performance.Instrument, func() error, error) {
	if soundFontPath == "" {
		logger.LogWarn("no -soundfont given; running silently with a recording instrument")
		rec := &instrument.RecordingInstrument{}
		return rec, func() error { return nil }, nil
	}

	synth, err := instrument.NewSynthInstrument(soundFontPath, nil)
	if err != nil {
		return nil, nil, err
	}
	return synth, synth.Close, nil
}

// voiceNote is one step of a demo melody: a pitch (MIDI-ish note number)
// and a length in beats of the voice clock playing it.
type voiceNote struct {
	pitch  float64
	length float64
}

func melodyA() []voiceNote {
	return []voiceNote{{60, 1}, {64, 1}, {67, 1}, {72, 1}, {67, 1}, {64, 1}, {60, 2}}
}

func melodyB() []voiceNote {
	return []voiceNote{{48, 2}, {52, 2}, {55, 2}, {48, 2}}
}

// playMelody plays notes in sequence on voice, each one blocking until
// the voice clock has advanced past its length.
func playMelody(voice *clock.Clock, inst performance.Instrument, notes []voiceNote) {
	beat := 0.0
	for _, n := range notes {
		note := performance.New(beat, performance.ScalarLength(n.length), performance.NumberPitch(n.pitch), performance.NumberValue(0.8), nil)
		if err := note.Play(inst, voice, true); err != nil {
			logger.LogError("voice %q: play note at beat %.2f: %v", voice.Name(), beat, err)
		}
		beat += n.length
	}
}
