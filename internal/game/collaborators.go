package game

import (
	"context"
	"time"
)

// DateLayout is the civil date format used for scheduled words.
const DateLayout = "2006-01-02"

// TargetWord is the word scheduled for one calendar date.
type TargetWord struct {
	Value string `json:"value" yaml:"value"`
	Date  string `json:"date" yaml:"date"`
}

// Len returns the number of letters in the word.
func (w TargetWord) Len() int {
	return wordLength(w.Value)
}

// WordSource resolves the word scheduled for the date of now. It returns
// ErrNoWordScheduled when nothing is scheduled.
type WordSource interface {
	TodaysWord(ctx context.Context, now time.Time) (TargetWord, error)
}

// Library is the local, synchronous word list check.
type Library interface {
	IsKnownWord(word string) bool
}

// Dictionary is the remote word oracle. Any error is treated as "not a word".
type Dictionary interface {
	CheckWord(ctx context.Context, word string) (bool, error)
}

// ScoreSink records a winning score. Failures are logged and dropped.
type ScoreSink interface {
	RecordScore(ctx context.Context, score int, word string) error
}

// GuessLog records guesses that were rejected as unknown words.
type GuessLog interface {
	LogIncorrectGuess(ctx context.Context, guessed, target string) error
}

// Deps bundles the collaborators a Session needs. Dictionary, Scores and
// Guesses may be nil.
type Deps struct {
	Words      WordSource
	Library    Library
	Dictionary Dictionary
	Scores     ScoreSink
	Guesses    GuessLog
	Store      *Persistence
}
