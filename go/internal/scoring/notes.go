package scoring

import "github.com/micdrop/karaoke-server/go/internal/catalog"

// ExpectedNote is a ground-truth pitch target: a point in the song (millis)
// and the frequency (Hz) the singer should be on.
type ExpectedNote struct {
	Time      int64
	Frequency float64
}

// baseFrequency and noteStep place one synthetic note per lyric line on an
// ascending scale. Real note extraction would analyze the audio track;
// the pitch detector feeding RecordFrame is an external collaborator either
// way, so the engine only needs frequencies that are strictly positive.
const (
	baseFrequency = 440.0
	noteStep      = 10.0
)

// NotesFromLyrics derives the expected-note timeline from a song's lyric
// sheet, one note per line. Every produced frequency is > 0, which the
// cents computation in the engine relies on.
func NotesFromLyrics(lyrics []catalog.LyricLine) []ExpectedNote {
	notes := make([]ExpectedNote, 0, len(lyrics))
	for i, line := range lyrics {
		notes = append(notes, ExpectedNote{
			Time:      line.Timestamp,
			Frequency: baseFrequency + float64(i)*noteStep,
		})
	}
	return notes
}
