package notation

import "encoding/xml"

const (
	musicXMLVersion = "4.0"
	musicXMLDoctype = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">`
)

type scorePartwise struct {
	XMLName  xml.Name `xml:"score-partwise"`
	Version  string   `xml:"version,attr"`
	Work     *work    `xml:"work,omitempty"`
	PartList partList `xml:"part-list"`
	Parts    []part   `xml:"part"`
}

type work struct {
	Title string `xml:"work-title"`
}

type partList struct {
	ScoreParts []scorePart `xml:"score-part"`
}

type scorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type part struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number     int         `xml:"number,attr"`
	Attributes *attributes `xml:"attributes,omitempty"`
	Direction  *direction  `xml:"direction,omitempty"`
	Notes      []note      `xml:"note"`
}

type attributes struct {
	Divisions int     `xml:"divisions"`
	Key       keySig  `xml:"key"`
	Time      timeSig `xml:"time"`
	Clef      clef    `xml:"clef"`
}

type keySig struct {
	Fifths int `xml:"fifths"`
}

type timeSig struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type clef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type direction struct {
	Placement     string        `xml:"placement,attr"`
	DirectionType directionType `xml:"direction-type"`
	Sound         sound         `xml:"sound"`
}

type directionType struct {
	Metronome metronome `xml:"metronome"`
}

type metronome struct {
	BeatUnit  string `xml:"beat-unit"`
	PerMinute int    `xml:"per-minute"`
}

type sound struct {
	Tempo int `xml:"tempo,attr"`
}

type empty struct{}

// note fields are declared in the order the MusicXML schema requires.
type note struct {
	Chord     *empty     `xml:"chord,omitempty"`
	Pitch     *pitch     `xml:"pitch,omitempty"`
	Rest      *empty     `xml:"rest,omitempty"`
	Duration  int        `xml:"duration"`
	Ties      []tie      `xml:"tie,omitempty"`
	Voice     int        `xml:"voice"`
	Type      string     `xml:"type,omitempty"`
	Dot       *empty     `xml:"dot,omitempty"`
	Notations *notations `xml:"notations,omitempty"`
}

type pitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type tie struct {
	Type string `xml:"type,attr"`
}

type notations struct {
	Tied []tie `xml:"tied"`
}
