package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"biowordle/internal/game"
	"biowordle/internal/types"
)

// gameStateHandler returns the current game for the session.
func (app *App) gameStateHandler(c *gin.Context) {
	sess, ok := app.loadSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, buildView(sess, ""))
}

// letterHandler appends one letter to the current attempt. A full row or an
// attempt on a finished game is ignored.
func (app *App) letterHandler(c *gin.Context) {
	sess, ok := app.loadSession(c)
	if !ok {
		return
	}
	err := sess.SelectLetter(strings.TrimSpace(c.PostForm("letter")))
	if errors.Is(err, game.ErrBufferFull) {
		err = nil
	}
	app.respond(c, sess, err)
}

// deleteHandler removes the last letter of the current attempt.
func (app *App) deleteHandler(c *gin.Context) {
	sess, ok := app.loadSession(c)
	if !ok {
		return
	}
	err := sess.DeleteLetter()
	if errors.Is(err, game.ErrBufferEmpty) {
		err = nil
	}
	app.respond(c, sess, err)
}

// submitHandler checks the typed attempt.
func (app *App) submitHandler(c *gin.Context) {
	sess, ok := app.loadSession(c)
	if !ok {
		return
	}
	app.submit(c, sess)
}

// guessHandler takes a whole word, replaces the current attempt with it and
// submits it.
func (app *App) guessHandler(c *gin.Context) {
	sess, ok := app.loadSession(c)
	if !ok {
		return
	}
	guess := normalizeGuess(c.PostForm("guess"))
	if err := sess.Type(guess); err != nil {
		app.respond(c, sess, err)
		return
	}
	app.submit(c, sess)
}

func (app *App) submit(c *gin.Context, sess *game.Session) {
	ctx := c.Request.Context()
	target := sess.Target()
	result, err := sess.Submit(ctx)
	if err == nil {
		logInfoCtx(ctx, "Attempt %d/%d on %s: %s",
			sess.AttemptsUsed(), game.MaxAttempts, target.Date, result.State)
	}
	app.respond(c, sess, err)
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	_, err := app.Words.TodaysWord(c.Request.Context(), app.Now())
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"env":            map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"words_loaded":   app.WordsLoaded,
		"accepted_words": app.AcceptedWords,
		"word_today":     err == nil,
		"store":          app.StoreName,
		"sessions":       app.sessionCount(),
		"uptime":         formatUptime(uptime),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// loadSession resolves the player's game. When there is none it writes the
// error response and returns false.
func (app *App) loadSession(c *gin.Context) (*game.Session, bool) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)
	sess, err := app.getGameSession(ctx, sessionID)
	if err == nil {
		return sess, true
	}
	status, notice := noticeFor(err)
	if status == http.StatusInternalServerError {
		logWarnCtx(ctx, "Failed to load game for session %s: %v", sessionID, err)
	}
	c.JSON(status, types.ErrorResponse{Error: notice})
	return nil, false
}

// respond writes the game view with the notice err maps to.
func (app *App) respond(c *gin.Context, sess *game.Session, err error) {
	status, notice := noticeFor(err)
	if status == http.StatusInternalServerError {
		logWarnCtx(c.Request.Context(), "Unexpected game error: %v", err)
	}
	c.JSON(status, buildView(sess, notice))
}

// noticeFor maps an engine error to an HTTP status and the text shown to the
// player. Input on a finished game is not an error for the client.
func noticeFor(err error) (int, string) {
	switch {
	case err == nil, errors.Is(err, game.ErrGameOver):
		return http.StatusOK, ""
	case errors.Is(err, game.ErrNoWordScheduled):
		return http.StatusServiceUnavailable, NoticeNoWord
	case errors.Is(err, game.ErrInvalidGuessLength):
		return http.StatusUnprocessableEntity, NoticeNotEnough
	case errors.Is(err, game.ErrUnknownWord):
		return http.StatusUnprocessableEntity, NoticeNotInWordList
	case errors.Is(err, game.ErrBufferFull):
		return http.StatusUnprocessableEntity, NoticeTooMany
	case errors.Is(err, game.ErrBufferEmpty):
		return http.StatusUnprocessableEntity, NoticeNotEnough
	case errors.Is(err, game.ErrInvalidLetter):
		return http.StatusBadRequest, NoticeInvalidLetter
	case errors.Is(err, game.ErrBusy):
		return http.StatusConflict, NoticeBusy
	default:
		return http.StatusInternalServerError, NoticeInternal
	}
}

// buildView renders a session for the client. The target word is only
// included once the game is over.
func buildView(sess *game.Session, notice string) types.GameView {
	target := sess.Target()
	state := sess.State()

	view := types.GameView{
		Date:        target.Date,
		WordLength:  target.Len(),
		MaxAttempts: game.MaxAttempts,
		State:       state.String(),
		Guesses: lo.Map(sess.Rows(), func(row []game.Tile, _ int) []types.GuessResult {
			return lo.Map(row, func(t game.Tile, _ int) types.GuessResult {
				return types.GuessResult{Letter: t.Letter, Status: t.Tag.String()}
			})
		}),
		Current: sess.Buffer(),
		Keys: lo.MapValues(sess.Keys(), func(tag game.LetterTag, _ string) string {
			return tag.String()
		}),
		Attempts: sess.AttemptsUsed(),
		GameOver: state.Terminal(),
		Won:      state == game.StateWon,
		Score:    sess.Score(),
		Shake:    sess.Shaking(),
		Notice:   notice,
	}
	if view.GameOver {
		view.TargetWord = target.Value
	}
	return view
}

// normalizeGuess trims and uppercases a guess string for comparison.
func normalizeGuess(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}
