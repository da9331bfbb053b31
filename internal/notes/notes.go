// Package notes reads and writes the note content of Standard MIDI Files.
package notes

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultResolution is the ticks-per-quarter used when a file does not say.
const DefaultResolution = 480

// DefaultTempo is the MIDI default of 120 BPM.
const DefaultTempo = 120.0

// Note is a single sounding pitch with absolute tick positions.
type Note struct {
	Channel  uint8
	Key      uint8
	Velocity uint8
	Start    uint64
	End      uint64
}

// Duration returns the note length in ticks.
func (n Note) Duration() uint64 {
	if n.End <= n.Start {
		return 0
	}
	return n.End - n.Start
}

// Sequence is the flattened note content of a MIDI file.
type Sequence struct {
	Resolution uint16
	Tempo      float64
	Notes      []Note
}

// ReadFile loads every note from all tracks of a MIDI file, sorted by start
// tick then key. Notes left open at the end of a track are closed there.
func ReadFile(path string) (*Sequence, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read midi file %s: %w", path, err)
	}

	seq := &Sequence{
		Resolution: DefaultResolution,
		Tempo:      DefaultTempo,
	}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && mt.Resolution() > 0 {
		seq.Resolution = mt.Resolution()
	}

	tempoSet := false
	for _, track := range s.Tracks {
		var abs uint64
		open := make(map[[2]uint8][]Note)

		for _, ev := range track {
			abs += uint64(ev.Delta)
			msg := midi.Message(ev.Message)

			var bpm float64
			if !tempoSet && ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				seq.Tempo = bpm
				tempoSet = true
				continue
			}

			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				k := [2]uint8{ch, key}
				open[k] = append(open[k], Note{Channel: ch, Key: key, Velocity: vel, Start: abs})
			case msg.GetNoteEnd(&ch, &key):
				k := [2]uint8{ch, key}
				pending := open[k]
				if len(pending) == 0 {
					continue
				}
				n := pending[0]
				open[k] = pending[1:]
				n.End = abs
				seq.Notes = append(seq.Notes, n)
			}
		}

		for _, pending := range open {
			for _, n := range pending {
				n.End = abs
				seq.Notes = append(seq.Notes, n)
			}
		}
	}

	sort.Slice(seq.Notes, func(i, j int) bool {
		if seq.Notes[i].Start == seq.Notes[j].Start {
			return seq.Notes[i].Key < seq.Notes[j].Key
		}
		return seq.Notes[i].Start < seq.Notes[j].Start
	})
	return seq, nil
}

// CountFile returns the number of notes in a MIDI file.
func CountFile(path string) (int, error) {
	seq, err := ReadFile(path)
	if err != nil {
		return 0, err
	}
	return len(seq.Notes), nil
}

type timedMessage struct {
	tick uint64
	off  bool
	msg  midi.Message
}

// WriteFile writes the sequence as a single-track Standard MIDI File.
func WriteFile(path string, seq *Sequence) error {
	resolution := seq.Resolution
	if resolution == 0 {
		resolution = DefaultResolution
	}
	tempo := seq.Tempo
	if tempo <= 0 {
		tempo = DefaultTempo
	}

	events := make([]timedMessage, 0, len(seq.Notes)*2)
	for _, n := range seq.Notes {
		events = append(events,
			timedMessage{tick: n.Start, msg: midi.NoteOn(n.Channel, n.Key, n.Velocity)},
			timedMessage{tick: n.End, off: true, msg: midi.NoteOff(n.Channel, n.Key)},
		)
	}
	// Note-offs sort before note-ons on the same tick so repeated keys re-trigger.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick == events[j].tick {
			return events[i].off && !events[j].off
		}
		return events[i].tick < events[j].tick
	})

	var track smf.Track
	track.Add(0, smf.MetaTempo(tempo))
	var last uint64
	for _, ev := range events {
		track.Add(uint32(ev.tick-last), ev.msg)
		last = ev.tick
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(resolution)
	if err := s.Add(track); err != nil {
		return fmt.Errorf("failed to add midi track: %w", err)
	}
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("failed to write midi file %s: %w", path, err)
	}
	return nil
}
