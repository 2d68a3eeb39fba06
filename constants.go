package main

const releaseVersion = "0.4.0"

// Session configuration constants
const (
	SessionCookieName = "session_id"
	SessionSlotPrefix = "gameState/"
)

// Route constants
const (
	RouteHome      = "/"
	RouteGameState = "/game-state"
	RouteLetter    = "/letter"
	RouteDelete    = "/delete"
	RouteSubmit    = "/submit"
	RouteGuess     = "/guess"
	RouteReveal    = "/reveal"
	RouteShare     = "/share.png"
	RouteHealthz   = "/healthz"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// User-visible notices
const (
	NoticeNoWord        = "There is no word set for today. Please contact game admin!"
	NoticeNotEnough     = "Not enough letters"
	NoticeNotInWordList = "Not in word list"
	NoticeBusy          = "Still checking your last guess."
	NoticeInvalidLetter = "Only letters can be entered."
	NoticeTooMany       = "Too many letters"
	NoticeNotWonYet     = "Win today's game to share your score."
	NoticeInternal      = "Something went wrong. Please try again."
	NoticeRateLimited   = "Too many requests. Please slow down."
)

// Context key constants
type contextKey string

const (
	requestIDKey contextKey = "request_id"
)
