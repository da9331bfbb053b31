// Package notation renders MIDI note content as a MusicXML score.
//
// The output is a single-part, single-voice score in 4/4 on a sixteenth-note
// grid. Notes starting on the same grid step become chords, overlapping notes
// are cut at the next onset, and notes crossing a barline are tied.
package notation

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonathan/sheet-transcriber/internal/notes"
)

const (
	divisions       = 4 // per quarter note
	beatsPerMeasure = 4
	measureLength   = divisions * beatsPerMeasure
)

// ErrNoNotes is returned when the MIDI file has nothing to render.
var ErrNoNotes = errors.New("no notes to render")

var (
	pitchSteps  = [12]string{"C", "C", "D", "D", "E", "F", "F", "G", "G", "A", "A", "B"}
	pitchAlters = [12]int{0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0}
)

// noteValue is a duration the score can write without a tie.
type noteValue struct {
	length int
	name   string
	dotted bool
}

var noteValues = []noteValue{
	{16, "whole", false},
	{12, "half", true},
	{8, "half", false},
	{6, "quarter", true},
	{4, "quarter", false},
	{3, "eighth", true},
	{2, "eighth", false},
	{1, "16th", false},
}

// Renderer converts MIDI files to MusicXML.
type Renderer struct {
	PartName string
}

// NewRenderer returns a renderer with default settings.
func NewRenderer() *Renderer {
	return &Renderer{PartName: "Transcription"}
}

// Render reads midiPath and writes a MusicXML document to outputPath.
func (r *Renderer) Render(ctx context.Context, midiPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seq, err := notes.ReadFile(midiPath)
	if err != nil {
		return err
	}

	title := strings.TrimSuffix(filepath.Base(midiPath), filepath.Ext(midiPath))
	score, err := r.build(seq, title)
	if err != nil {
		return err
	}

	data, err := encode(score)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write musicxml %s: %w", outputPath, err)
	}
	return nil
}

func encode(score *scorePartwise) ([]byte, error) {
	body, err := xml.MarshalIndent(score, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode musicxml: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(musicXMLDoctype)
	buf.WriteByte('\n')
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// onset is a group of keys struck together, in grid steps.
type onset struct {
	start    int
	duration int
	keys     []uint8
}

func quantize(seq *notes.Sequence) []onset {
	grid := float64(seq.Resolution) / divisions
	if grid < 1 {
		grid = 1
	}

	byStart := make(map[int]*onset)
	for _, n := range seq.Notes {
		start := int(math.Round(float64(n.Start) / grid))
		end := int(math.Round(float64(n.End) / grid))
		if end <= start {
			end = start + 1
		}
		o, ok := byStart[start]
		if !ok {
			o = &onset{start: start}
			byStart[start] = o
		}
		o.keys = append(o.keys, n.Key)
		if d := end - start; d > o.duration {
			o.duration = d
		}
	}

	onsets := make([]onset, 0, len(byStart))
	for _, o := range byStart {
		sort.Slice(o.keys, func(i, j int) bool { return o.keys[i] < o.keys[j] })
		o.keys = dedupe(o.keys)
		onsets = append(onsets, *o)
	}
	sort.Slice(onsets, func(i, j int) bool { return onsets[i].start < onsets[j].start })

	for i := 0; i+1 < len(onsets); i++ {
		if next := onsets[i+1].start; onsets[i].start+onsets[i].duration > next {
			onsets[i].duration = next - onsets[i].start
		}
	}
	return onsets
}

func dedupe(keys []uint8) []uint8 {
	out := keys[:0]
	for i, k := range keys {
		if i == 0 || k != keys[i-1] {
			out = append(out, k)
		}
	}
	return out
}

// scoreBuilder lays notes and rests into measures.
type scoreBuilder struct {
	measures []measure
}

func (b *scoreBuilder) measureAt(pos int) *measure {
	idx := pos / measureLength
	for len(b.measures) <= idx {
		b.measures = append(b.measures, measure{Number: len(b.measures) + 1})
	}
	return &b.measures[idx]
}

// place writes keys (or a rest when keys is empty) from pos for length grid
// steps, splitting at barlines and into writable values joined by ties.
func (b *scoreBuilder) place(pos, length int, keys []uint8) {
	type piece struct {
		pos int
		val noteValue
	}
	var pieces []piece
	for length > 0 {
		room := measureLength - pos%measureLength
		chunk := min(length, room)
		for chunk > 0 {
			for _, v := range noteValues {
				if v.length <= chunk {
					pieces = append(pieces, piece{pos: pos, val: v})
					pos += v.length
					chunk -= v.length
					length -= v.length
					break
				}
			}
		}
	}

	for i, p := range pieces {
		m := b.measureAt(p.pos)
		if len(keys) == 0 {
			m.Notes = append(m.Notes, makeNote(p.val, nil, false, false, false))
			continue
		}
		tieStop := i > 0
		tieStart := i < len(pieces)-1
		for k, key := range keys {
			m.Notes = append(m.Notes, makeNote(p.val, toPitch(key), k > 0, tieStart, tieStop))
		}
	}
}

func makeNote(v noteValue, p *pitch, chord, tieStart, tieStop bool) note {
	n := note{
		Pitch:    p,
		Duration: v.length,
		Voice:    1,
		Type:     v.name,
	}
	if p == nil {
		n.Rest = &empty{}
	}
	if chord {
		n.Chord = &empty{}
	}
	if v.dotted {
		n.Dot = &empty{}
	}
	var ties []tie
	if tieStop {
		ties = append(ties, tie{Type: "stop"})
	}
	if tieStart {
		ties = append(ties, tie{Type: "start"})
	}
	if len(ties) > 0 {
		n.Ties = ties
		n.Notations = &notations{Tied: ties}
	}
	return n
}

func toPitch(key uint8) *pitch {
	pc := int(key) % 12
	return &pitch{
		Step:   pitchSteps[pc],
		Alter:  pitchAlters[pc],
		Octave: int(key)/12 - 1,
	}
}

func (r *Renderer) build(seq *notes.Sequence, title string) (*scorePartwise, error) {
	if len(seq.Notes) == 0 {
		return nil, ErrNoNotes
	}

	onsets := quantize(seq)
	b := &scoreBuilder{}
	cursor := 0
	var keySum, keyCount int
	for _, o := range onsets {
		if o.start > cursor {
			b.place(cursor, o.start-cursor, nil)
		}
		b.place(o.start, o.duration, o.keys)
		cursor = o.start + o.duration
		for _, k := range o.keys {
			keySum += int(k)
			keyCount++
		}
	}
	if rem := cursor % measureLength; rem != 0 {
		b.place(cursor, measureLength-rem, nil)
	}

	c := clef{Sign: "G", Line: 2}
	if keyCount > 0 && keySum/keyCount < 60 {
		c = clef{Sign: "F", Line: 4}
	}
	tempo := int(math.Round(seq.Tempo))
	if tempo <= 0 {
		tempo = int(notes.DefaultTempo)
	}

	first := &b.measures[0]
	first.Attributes = &attributes{
		Divisions: divisions,
		Key:       keySig{Fifths: 0},
		Time:      timeSig{Beats: beatsPerMeasure, BeatType: 4},
		Clef:      c,
	}
	first.Direction = &direction{
		Placement:     "above",
		DirectionType: directionType{Metronome: metronome{BeatUnit: "quarter", PerMinute: tempo}},
		Sound:         sound{Tempo: tempo},
	}

	partName := r.PartName
	if partName == "" {
		partName = "Transcription"
	}
	score := &scorePartwise{
		Version:  musicXMLVersion,
		PartList: partList{ScoreParts: []scorePart{{ID: "P1", Name: partName}}},
		Parts:    []part{{ID: "P1", Measures: b.measures}},
	}
	if title != "" {
		score.Work = &work{Title: title}
	}
	return score, nil
}
