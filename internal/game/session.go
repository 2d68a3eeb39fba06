package game

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ShakeDuration is how long the invalid-word signal stays raised.
const ShakeDuration = 1000 * time.Millisecond

// State is the phase of a Session.
type State int

const (
	StateLoading State = iota
	StateAwaitingInput
	StateSubmitting
	StateWon
	StateLost
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateSubmitting:
		return "submitting"
	case StateWon:
		return "won"
	case StateLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further input is accepted.
func (s State) Terminal() bool {
	return s == StateWon || s == StateLost
}

// Options tune a Session. Zero values are usable.
type Options struct {
	Now    func() time.Time
	Logger *zap.Logger
}

// SubmitResult is the logical outcome of a committed attempt.
type SubmitResult struct {
	Row   []Tile
	State State
	Score int
}

// Session is one player's game for the current day. All methods are safe
// for concurrent use; input arriving while a guess is being checked is
// rejected with ErrBusy.
type Session struct {
	mu     sync.Mutex
	deps   Deps
	now    func() time.Time
	logger *zap.Logger

	target     TargetWord
	state      State
	buffer     []rune
	tiles      []Tile
	keys       KeyHints
	score      int
	shakeUntil time.Time
}

// NewSession loads today's word and restores any saved progress for it.
// It fails with ErrNoWordScheduled when there is nothing to play.
func NewSession(ctx context.Context, deps Deps, opts Options) (*Session, error) {
	if deps.Words == nil {
		return nil, errors.New("game: no word source configured")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Session{
		deps:   deps,
		now:    opts.Now,
		logger: opts.Logger,
		state:  StateLoading,
		keys:   KeyHints{},
	}

	target, err := deps.Words.TodaysWord(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if target.Len() == 0 {
		return nil, ErrNoWordScheduled
	}
	s.target = target
	s.buffer = make([]rune, 0, target.Len())

	s.restore(ctx)
	return s, nil
}

func (s *Session) restore(ctx context.Context) {
	s.state = StateAwaitingInput
	if s.deps.Store == nil {
		return
	}

	snap, err := s.deps.Store.Load(ctx, s.target.Value)
	if err != nil {
		s.logger.Warn("could not restore session, starting fresh", zap.Error(err))
		return
	}
	if snap.IsEmpty() {
		return
	}

	s.tiles = snap.Tiles()
	s.keys = snap.Keys.Clone()
	if len(s.keys) == 0 {
		s.keys.Fold(s.tiles)
	}

	attempts := s.attemptsLocked()
	switch {
	case allCorrect(s.lastRowLocked()):
		s.state = StateWon
		s.score = Score(s.target.Len(), attempts)
	case attempts >= MaxAttempts:
		s.state = StateLost
	}
	s.logger.Info("session restored",
		zap.String("word", s.target.Value),
		zap.Int("attempts", attempts),
		zap.Stringer("state", s.state))
}

// guardLocked rejects input outside AwaitingInput.
func (s *Session) guardLocked() error {
	switch s.state {
	case StateAwaitingInput:
		return nil
	case StateWon, StateLost:
		return ErrGameOver
	default:
		return ErrBusy
	}
}

// SelectLetter appends one letter to the current attempt.
func (s *Session) SelectLetter(letter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(); err != nil {
		return err
	}
	r, err := parseLetter(letter)
	if err != nil {
		return err
	}
	if len(s.buffer) >= s.target.Len() {
		return ErrBufferFull
	}
	s.buffer = append(s.buffer, r)
	return nil
}

// DeleteLetter removes the last letter of the current attempt.
func (s *Session) DeleteLetter() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(); err != nil {
		return err
	}
	if len(s.buffer) == 0 {
		return ErrBufferEmpty
	}
	s.buffer = s.buffer[:len(s.buffer)-1]
	return nil
}

// Type replaces the current attempt with word. It is the whole-word form of
// SelectLetter and applies the same checks to every letter.
func (s *Session) Type(word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(); err != nil {
		return err
	}
	letters := make([]rune, 0, s.target.Len())
	for _, r := range word {
		up, err := parseLetter(string(r))
		if err != nil {
			return err
		}
		letters = append(letters, up)
	}
	if len(letters) > s.target.Len() {
		return ErrBufferFull
	}
	s.buffer = append(s.buffer[:0], letters...)
	return nil
}

// Submit checks the current attempt and, if it is a real word, scores it.
// An unknown word returns ErrUnknownWord, raises the shake signal and does
// not use up an attempt. Once the check has finished, saving and reporting
// the outcome ignore cancellation of ctx.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	s.mu.Lock()
	state := s.state
	if err := s.guardLocked(); err != nil {
		s.mu.Unlock()
		return SubmitResult{State: state}, err
	}
	if len(s.buffer) != s.target.Len() {
		s.mu.Unlock()
		return SubmitResult{State: state}, ErrInvalidGuessLength
	}
	guess := string(s.buffer)
	target := s.target.Value
	s.state = StateSubmitting
	s.mu.Unlock()

	valid := s.isValidWord(ctx, guess)
	commitCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	if !valid {
		s.state = StateAwaitingInput
		s.shakeUntil = s.now().Add(ShakeDuration)
		s.mu.Unlock()

		s.logger.Info("unknown word", zap.String("guess", guess))
		s.logIncorrectGuess(commitCtx, guess, target)
		return SubmitResult{State: StateAwaitingInput}, ErrUnknownWord
	}

	row := EvaluateTiles(guess, target)
	s.tiles = append(s.tiles, row...)
	s.keys.Fold(row)
	s.persistLocked(commitCtx)

	attempts := s.attemptsLocked()
	won := allCorrect(row)
	switch {
	case won:
		s.state = StateWon
		s.score = Score(s.target.Len(), attempts)
	case attempts >= MaxAttempts:
		s.state = StateLost
	default:
		s.state = StateAwaitingInput
	}
	s.buffer = s.buffer[:0]
	result := SubmitResult{Row: row, State: s.state, Score: s.score}
	s.mu.Unlock()

	s.logger.Info("attempt committed",
		zap.String("guess", guess),
		zap.Int("attempt", attempts),
		zap.Stringer("state", result.State))

	if won {
		s.recordScore(commitCtx, result.Score, target)
	}
	return result, nil
}

// isValidWord accepts library words immediately and otherwise asks the
// dictionary. A dictionary failure counts as "not a word".
func (s *Session) isValidWord(ctx context.Context, word string) bool {
	if s.deps.Library != nil && s.deps.Library.IsKnownWord(word) {
		return true
	}
	if s.deps.Dictionary == nil {
		return false
	}
	ok, err := s.deps.Dictionary.CheckWord(ctx, word)
	if err != nil {
		s.logger.Warn("dictionary unavailable, rejecting guess", zap.String("guess", word), zap.Error(err))
		return false
	}
	return ok
}

func (s *Session) persistLocked(ctx context.Context) {
	if s.deps.Store == nil {
		return
	}
	snap := NewSnapshot(s.target.Value, s.tiles, s.keys)
	if err := s.deps.Store.Save(ctx, snap); err != nil {
		s.logger.Warn("could not persist session", zap.Error(err))
	}
}

func (s *Session) recordScore(ctx context.Context, score int, word string) {
	if s.deps.Scores == nil {
		return
	}
	if err := s.deps.Scores.RecordScore(ctx, score, word); err != nil {
		s.logger.Warn("could not record score", zap.Int("score", score), zap.Error(err))
	}
}

func (s *Session) logIncorrectGuess(ctx context.Context, guessed, target string) {
	if s.deps.Guesses == nil {
		return
	}
	if err := s.deps.Guesses.LogIncorrectGuess(ctx, guessed, target); err != nil {
		s.logger.Warn("could not log incorrect guess", zap.String("guess", guessed), zap.Error(err))
	}
}

func (s *Session) attemptsLocked() int {
	return len(s.tiles) / s.target.Len()
}

func (s *Session) lastRowLocked() []Tile {
	n := s.target.Len()
	if len(s.tiles) < n {
		return nil
	}
	return s.tiles[len(s.tiles)-n:]
}

// Target returns today's word.
func (s *Session) Target() TargetWord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsOver reports whether the session has been won or lost.
func (s *Session) IsOver() bool {
	return s.State().Terminal()
}

// Won reports whether the session ended in a win.
func (s *Session) Won() bool {
	return s.State() == StateWon
}

// Buffer returns the letters typed for the current attempt.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buffer)
}

// Tiles returns a copy of every committed tile in order.
func (s *Session) Tiles() []Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tile(nil), s.tiles...)
}

// Rows returns committed tiles grouped per attempt.
func (s *Session) Rows() [][]Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tiles) == 0 {
		return nil
	}
	return lo.Chunk(append([]Tile(nil), s.tiles...), s.target.Len())
}

// LastRow returns the most recently committed attempt, nil if none.
func (s *Session) LastRow() []Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tile(nil), s.lastRowLocked()...)
}

// Keys returns a copy of the keyboard hints.
func (s *Session) Keys() KeyHints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys.Clone()
}

// AttemptsUsed returns the number of committed attempts.
func (s *Session) AttemptsUsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptsLocked()
}

// Score returns the winning score, 0 unless won.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Shaking reports whether the invalid-word signal is still raised.
func (s *Session) Shaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.shakeUntil)
}

// parseLetter accepts exactly one letter and returns it upper-cased.
func parseLetter(l string) (rune, error) {
	if utf8.RuneCountInString(l) != 1 {
		return 0, ErrInvalidLetter
	}
	r, _ := utf8.DecodeRuneInString(l)
	if !unicode.IsLetter(r) {
		return 0, ErrInvalidLetter
	}
	return unicode.ToUpper(r), nil
}
