package game

// MaxAttempts is the number of guesses allowed per day.
const MaxAttempts = 6

// Score returns the points for a win on attempt attemptsUsed (1-based,
// counting the winning guess) of a word with wordLength letters.
func Score(wordLength, attemptsUsed int) int {
	triesRemaining := MaxAttempts - attemptsUsed
	return wordLength * (triesRemaining + 1)
}
