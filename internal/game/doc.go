// Package game is the per-player engine of the daily word game: guess
// evaluation, keyboard hints, scoring, the session state machine and the
// snapshot persistence that lets a reload resume the day's game.
package game
