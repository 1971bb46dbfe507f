package instrument

import (
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"gitlab.com/gomidi/midi/v2"
)

// midiBridge implements midi.Writer, forwarding gomidi messages to a
// meltysynth synthesizer. Copied in shape (not substance) from the
// teacher repo's pkg/engine.MIDIBridge: same extractMIDIComponents byte
// parsing, same single ProcessMidiMessage call, just without the file
// parser on the other end of it since notes arrive one at a time from a
// forked clock voice instead of a parsed Standard MIDI File.
type midiBridge struct {
	synth *meltysynth.Synthesizer
	mu    sync.Mutex
}

func newMIDIBridge(synth *meltysynth.Synthesizer) *midiBridge {
	return &midiBridge{synth: synth}
}

// Write implements midi.Writer, forwarding msg to the synthesizer.
func (b *midiBridge) Write(msg midi.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	channel, command, data1, data2 := extractMIDIComponents(msg)
	b.synth.ProcessMidiMessage(int32(channel), int32(command), int32(data1), int32(data2))
	return nil
}

// extractMIDIComponents extracts channel, command, data1, and data2 from
// a gomidi MIDI message, identical to the teacher repo's helper of the
// same name.
func extractMIDIComponents(msg midi.Message) (channel, command, data1, data2 byte) {
	raw := msg.Bytes()
	if len(raw) == 0 {
		return 0, 0, 0, 0
	}

	status := raw[0]
	if status >= 0x80 && status < 0xF0 {
		channel = status & 0x0F
		command = status & 0xF0
	} else {
		channel = 0
		command = status
	}

	if len(raw) > 1 {
		data1 = raw[1]
	}
	if len(raw) > 2 {
		data2 = raw[2]
	}
	return channel, command, data1, data2
}
