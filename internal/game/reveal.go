package game

import (
	"context"
	"time"
)

// RevealInterval is the stagger between tiles when a row is flipped.
const RevealInterval = 200 * time.Millisecond

// Reveal replays a committed row one tile at a time. It only affects
// presentation; the outcome is already decided by Submit.
type Reveal struct {
	Interval time.Duration
}

// NewReveal returns a Reveal using RevealInterval.
func NewReveal() Reveal {
	return Reveal{Interval: RevealInterval}
}

// TileDelay is the offset of tile i from submission.
func (r Reveal) TileDelay(i int) time.Duration {
	return r.Interval * time.Duration(i+1)
}

// OutcomeDelay is the offset at which a win or loss should be shown for a
// word of n letters.
func (r Reveal) OutcomeDelay(n int) time.Duration {
	return r.Interval * time.Duration(n+1)
}

// Play calls emit for every tile of row at its TileDelay, then waits for the
// outcome delay. It stops early on context cancellation or an emit error.
func (r Reveal) Play(ctx context.Context, row []Tile, emit func(i int, t Tile) error) error {
	if len(row) == 0 {
		return nil
	}
	if r.Interval <= 0 {
		for i, t := range row {
			if err := emit(i, t); err != nil {
				return err
			}
		}
		return nil
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for i := 0; i <= len(row); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if i == len(row) {
			break
		}
		if err := emit(i, row[i]); err != nil {
			return err
		}
	}
	return nil
}
