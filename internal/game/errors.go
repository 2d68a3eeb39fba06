package game

import "errors"

var (
	// ErrNoWordScheduled means no target word exists for today. The game
	// cannot start.
	ErrNoWordScheduled = errors.New("no word scheduled for today")

	// ErrInvalidGuessLength is returned by Submit when the buffer is not a
	// full word.
	ErrInvalidGuessLength = errors.New("not enough letters")

	// ErrUnknownWord is returned by Submit when the guess is neither in the
	// library nor accepted by the dictionary, including when the dictionary
	// could not be reached.
	ErrUnknownWord = errors.New("not in word list")

	// ErrGameOver is returned for any input after the session has been won
	// or lost. Callers treat it as a no-op.
	ErrGameOver = errors.New("game is over")

	ErrBusy          = errors.New("guess is being checked")
	ErrBufferFull    = errors.New("attempt is already full")
	ErrBufferEmpty   = errors.New("attempt is empty")
	ErrInvalidLetter = errors.New("not a letter")
)
