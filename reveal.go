package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"biowordle/internal/game"
	"biowordle/internal/types"
)

const revealWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// revealHandler replays the player's last committed row over a websocket,
// one tile per reveal interval, then sends the outcome. The game itself is
// already decided; this only paces the presentation.
func (app *App) revealHandler(c *gin.Context) {
	sess, ok := app.loadSession(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logWarnCtx(c.Request.Context(), "Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Reading is only needed to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(frame types.RevealFrame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(revealWriteWait))
		return conn.WriteJSON(frame)
	}

	err = app.Reveal.Play(ctx, sess.LastRow(), func(i int, t game.Tile) error {
		return send(types.RevealFrame{
			Type:   "tile",
			Index:  i,
			Letter: t.Letter,
			Status: t.Tag.String(),
		})
	})
	if err != nil {
		logInfoCtx(ctx, "Reveal stopped early: %v", err)
		return
	}

	state := sess.State()
	outcome := types.RevealFrame{Type: "outcome", State: state.String(), Score: sess.Score()}
	if state.Terminal() {
		outcome.Word = sess.Target().Value
	}
	if err := send(outcome); err != nil {
		logInfoCtx(ctx, "Reveal outcome not delivered: %v", err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(revealWriteWait))
}
