package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"biowordle/internal/game"
)

// playerSession is a live game plus the time the player last touched it.
type playerSession struct {
	game       *game.Session
	lastAccess time.Time
}

// getOrCreateSession retrieves the session ID from the cookie or creates a new
// one. The cookie is re-issued on every request so its lifetime counts from
// the player's last visit.
func (app *App) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || !validSessionID(sessionID) {
		sessionID = uuid.NewString()
		logInfoCtx(c.Request.Context(), "Created new session: %s", sessionID)
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, sessionID, int(app.CookieMaxAge.Seconds()), "/", "", app.IsProduction, true)
	return sessionID
}

// validSessionID accepts only ids this server could have issued, which keeps
// the persistence slot name safe for every store.
func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// getGameSession returns the player's game for today, building it (and
// restoring any saved progress) when there is none or the day has changed.
func (app *App) getGameSession(ctx context.Context, sessionID string) (*game.Session, error) {
	today := app.Now().Format(game.DateLayout)

	app.SessionMutex.Lock()
	ps, exists := app.GameSessions[sessionID]
	if exists && ps.game.Target().Date == today {
		ps.lastAccess = app.Now()
		app.SessionMutex.Unlock()
		return ps.game, nil
	}
	app.SessionMutex.Unlock()

	if exists {
		logInfoCtx(ctx, "Word changed since session %s last played, starting today's game", sessionID)
	}

	sess, err := game.NewSession(ctx, app.deps(sessionID), game.Options{
		Now:    app.Now,
		Logger: sessionLogger(sessionID),
	})
	if err != nil {
		return nil, err
	}

	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	// Another request for the same player may have won the race.
	if cur, ok := app.GameSessions[sessionID]; ok && cur != ps && cur.game.Target().Date == today {
		cur.lastAccess = app.Now()
		return cur.game, nil
	}
	app.GameSessions[sessionID] = &playerSession{game: sess, lastAccess: app.Now()}
	logInfoCtx(ctx, "Loaded game for session %s (%d attempt%s so far)",
		sessionID, sess.AttemptsUsed(), plural(sess.AttemptsUsed()))
	return sess, nil
}

// deps returns the collaborators for one player's game. Each player has
// their own persistence slot.
func (app *App) deps(sessionID string) game.Deps {
	return game.Deps{
		Words:      app.Words,
		Library:    app.Library,
		Dictionary: app.Dictionary,
		Scores:     app.Scores,
		Guesses:    app.Guesses,
		Store:      game.NewPersistence(app.KV, SessionSlotPrefix+sessionID, sessionLogger(sessionID)),
	}
}

// cleanupOldSessions drops sessions idle for longer than SessionTimeout and
// returns how many were dropped. Their progress stays in the store.
func (app *App) cleanupOldSessions() int {
	cutoff := app.Now().Add(-app.SessionTimeout)

	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	removed := 0
	for id, ps := range app.GameSessions {
		if ps.lastAccess.Before(cutoff) {
			delete(app.GameSessions, id)
			removed++
		}
	}
	return removed
}

func (app *App) sessionCount() int {
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	return len(app.GameSessions)
}
