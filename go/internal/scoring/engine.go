// Package scoring reduces a stream of timestamped pitch samples into a
// performance score for one singing session. It is independent of the room
// and transport layers; the audio capture pipeline owns an Engine and feeds
// it frames, then asks for the final result when the song ends.
package scoring

import (
	"math"

	"github.com/micdrop/karaoke-server/go/internal/catalog"
)

// State is the engine lifecycle: Idle until Initialize, Recording while
// frames arrive, Scored once the result is computed.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateScored
)

// Sample is one pitch measurement. Timestamp is millis into the song.
// UserFrequency is 0 when the detector heard nothing usable.
type Sample struct {
	Timestamp         int64
	ExpectedFrequency float64
	UserFrequency     float64
	Confidence        float64
}

// Result is the final performance report. All scores are 0-100.
type Result struct {
	OverallScore  int      `json:"overallScore"`
	Accuracy      int      `json:"accuracy"`
	Rhythm        int      `json:"rhythm"`
	PitchAccuracy int      `json:"pitchAccuracy"`
	Consistency   int      `json:"consistency"`
	Rating        string   `json:"rating"`
	Feedback      []string `json:"feedback"`
}

// Ratings, from best to worst.
const (
	RatingPerfect = "Perfect"
	RatingGreat   = "Great"
	RatingGood    = "Good"
	RatingFair    = "Fair"
	RatingPoor    = "Poor"
)

// Scoring windows and tolerances.
const (
	// centsTolerance: average pitch error (in cents) at which the pitch
	// score bottoms out. 50 cents is half a semitone.
	centsTolerance = 50.0
	// rhythmWindowMs: a sample counts as on-time if it lands within this
	// distance of the nearest expected note.
	rhythmWindowMs = 200
	// coverageWindowMs: a note counts as hit if any voiced sample lands
	// within this distance of it.
	coverageWindowMs = 300
)

// Engine accumulates samples for a single session. Single-writer: it is
// owned by whichever goroutine runs the live capture stream and needs no
// internal locking.
type Engine struct {
	state   State
	samples []Sample
	notes   []ExpectedNote
	result  *Result
}

func NewEngine() *Engine {
	return &Engine{state: StateIdle}
}

// State reports the engine lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Initialize derives the expected-note timeline from the song's lyric sheet
// and moves the engine into Recording. Any previous session data is dropped.
func (e *Engine) Initialize(lyrics []catalog.LyricLine) {
	e.samples = nil
	e.result = nil
	e.notes = NotesFromLyrics(lyrics)
	e.state = StateRecording
}

// RecordFrame appends one pitch sample. Frames arriving outside Recording
// are dropped; once a session is scored its samples are frozen.
func (e *Engine) RecordFrame(timestamp int64, expectedFrequency, userFrequency, confidence float64) {
	if e.state != StateRecording {
		return
	}
	e.samples = append(e.samples, Sample{
		Timestamp:         timestamp,
		ExpectedFrequency: expectedFrequency,
		UserFrequency:     userFrequency,
		Confidence:        confidence,
	})
}

// FinalScore computes the performance report and moves the engine to Scored.
// Repeat calls return the cached result unchanged. With no samples the
// result is an explicit zero/Poor report so callers always have something
// to render.
func (e *Engine) FinalScore() Result {
	if e.result != nil {
		return *e.result
	}

	if len(e.samples) == 0 {
		e.result = &Result{
			Rating:   RatingPoor,
			Feedback: []string{"No performance data recorded"},
		}
		e.state = StateScored
		return *e.result
	}

	accuracy := e.accuracy()
	rhythm := e.rhythm()
	pitch := e.pitchAccuracy()
	consistency := e.consistency()
	overall := (accuracy + rhythm + pitch + consistency) / 4

	e.result = &Result{
		OverallScore:  round(overall),
		Accuracy:      round(accuracy),
		Rhythm:        round(rhythm),
		PitchAccuracy: round(pitch),
		Consistency:   round(consistency),
		Rating:        rating(overall),
		Feedback:      feedback(accuracy, rhythm, pitch, consistency),
	}
	e.state = StateScored
	return *e.result
}

// Reset discards all session data and returns the engine to Idle.
func (e *Engine) Reset() {
	e.samples = nil
	e.notes = nil
	e.result = nil
	e.state = StateIdle
}

// PerformanceData exposes the raw session data for visualization.
func (e *Engine) PerformanceData() (samples []Sample, notes []ExpectedNote) {
	return e.samples, e.notes
}

// pitchAccuracy averages the absolute pitch error of voiced samples in
// cents (1200·log2(user/expected)) and maps centsTolerance to zero.
// Undefined when ExpectedFrequency <= 0; NotesFromLyrics guarantees the
// expected frequencies it produces are positive.
func (e *Engine) pitchAccuracy() float64 {
	totalCents := 0.0
	voiced := 0

	for _, s := range e.samples {
		if s.UserFrequency > 0 {
			cents := 1200 * math.Log2(s.UserFrequency/s.ExpectedFrequency)
			totalCents += math.Abs(cents)
			voiced++
		}
	}

	if voiced == 0 {
		return 0
	}

	avgCents := totalCents / float64(voiced)
	return math.Max(0, 100-avgCents*(100/centsTolerance))
}

// rhythm is the fraction of samples landing within rhythmWindowMs of the
// nearest expected note.
func (e *Engine) rhythm() float64 {
	onTime := 0
	for _, s := range e.samples {
		if note, ok := e.closestNote(s.Timestamp); ok &&
			abs64(s.Timestamp-note.Time) < rhythmWindowMs {
			onTime++
		}
	}
	return float64(onTime) / float64(len(e.samples)) * 100
}

// accuracy is note coverage: the fraction of expected notes with at least
// one voiced sample within coverageWindowMs.
func (e *Engine) accuracy() float64 {
	if len(e.notes) == 0 {
		return 0
	}
	hit := 0
	for _, note := range e.notes {
		for _, s := range e.samples {
			if abs64(s.Timestamp-note.Time) < coverageWindowMs && s.UserFrequency > 0 {
				hit++
				break
			}
		}
	}
	return float64(hit) / float64(len(e.notes)) * 100
}

// consistency is 100 minus the standard deviation of a per-sample proxy
// score; steadier singing scores higher. Fewer than two samples gives a
// neutral 50.
func (e *Engine) consistency() float64 {
	if len(e.samples) < 2 {
		return 50
	}

	scores := make([]float64, len(e.samples))
	for i, s := range e.samples {
		diff := math.Abs(s.UserFrequency - s.ExpectedFrequency)
		scores[i] = math.Max(0, 100-diff/10)
	}

	mean := 0.0
	for _, v := range scores {
		mean += v
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, v := range scores {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(scores))

	return math.Max(0, 100-math.Sqrt(variance))
}

func (e *Engine) closestNote(timestamp int64) (ExpectedNote, bool) {
	if len(e.notes) == 0 {
		return ExpectedNote{}, false
	}
	best := e.notes[0]
	bestDiff := abs64(timestamp - best.Time)
	for _, note := range e.notes[1:] {
		if d := abs64(timestamp - note.Time); d < bestDiff {
			best, bestDiff = note, d
		}
	}
	return best, true
}

func rating(score float64) string {
	switch {
	case score >= 95:
		return RatingPerfect
	case score >= 85:
		return RatingGreat
	case score >= 75:
		return RatingGood
	case score >= 60:
		return RatingFair
	default:
		return RatingPoor
	}
}

func feedback(accuracy, rhythm, pitch, consistency float64) []string {
	var fb []string

	if pitch < 70 {
		fb = append(fb, "Work on hitting the correct pitch")
	} else if pitch > 90 {
		fb = append(fb, "Excellent pitch control!")
	}

	if rhythm < 70 {
		fb = append(fb, "Pay attention to the timing")
	} else if rhythm > 90 {
		fb = append(fb, "Perfect timing!")
	}

	if accuracy < 60 {
		fb = append(fb, "You missed many notes, try again!")
	} else if accuracy > 85 {
		fb = append(fb, "Great note coverage!")
	}

	if consistency < 60 {
		fb = append(fb, "Try to be more consistent throughout")
	} else if consistency > 80 {
		fb = append(fb, "Very consistent performance!")
	}

	if len(fb) == 0 {
		fb = append(fb, "Well done!")
	}
	return fb
}

func round(v float64) int {
	return int(math.Round(v))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
