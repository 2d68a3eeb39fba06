// Package types holds the JSON shapes the HTTP service sends to clients.
package types

// GuessResult is one evaluated tile.
type GuessResult struct {
	Letter string `json:"letter"`
	Status string `json:"status"`
}

// GameView is a player's game as the client renders it.
type GameView struct {
	Date        string            `json:"date"`
	WordLength  int               `json:"wordLength"`
	MaxAttempts int               `json:"maxAttempts"`
	State       string            `json:"state"`
	Guesses     [][]GuessResult   `json:"guesses"`
	Current     string            `json:"current"`
	Keys        map[string]string `json:"keys"`
	Attempts    int               `json:"attempts"`
	GameOver    bool              `json:"gameOver"`
	Won         bool              `json:"won"`
	Score       int               `json:"score,omitempty"`
	TargetWord  string            `json:"targetWord,omitempty"` // only once the game is over
	Shake       bool              `json:"shake"`
	Notice      string            `json:"notice,omitempty"`
}

// RevealFrame is one message on the reveal websocket.
type RevealFrame struct {
	Type   string `json:"type"` // "tile" or "outcome"
	Index  int    `json:"index"`
	Letter string `json:"letter,omitempty"`
	Status string `json:"status,omitempty"`
	State  string `json:"state,omitempty"`
	Score  int    `json:"score,omitempty"`
	Word   string `json:"word,omitempty"`
}

// ErrorResponse is returned when there is no game to show.
type ErrorResponse struct {
	Error string `json:"error"`
}
