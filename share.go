package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"biowordle/internal/types"
)

const shareQRSize = 320

// shareText is the message a winner shares.
func shareText(score int) string {
	return fmt.Sprintf("I scored %d points in today's BioWordle.", score)
}

// shareHandler returns a PNG QR code of the share text once the player has
// won today's game.
func (app *App) shareHandler(c *gin.Context) {
	sess, ok := app.loadSession(c)
	if !ok {
		return
	}
	if !sess.Won() {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: NoticeNotWonYet})
		return
	}

	png, err := qrcode.Encode(shareText(sess.Score()), qrcode.Medium, shareQRSize)
	if err != nil {
		logWarnCtx(c.Request.Context(), "QR generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: NoticeInternal})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
