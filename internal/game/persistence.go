package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// DefaultSlot is the storage key the snapshot lives under. There is one
// slot per player, not one per day: a stored snapshot for a different word
// is the signal that a new day has started.
const DefaultSlot = "gameState"

// KeyValue is a durable byte store. Get reports ok=false for a missing key.
type KeyValue interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Snapshot is the persisted form of a session.
type Snapshot struct {
	TargetWord string      `json:"currentWordValue"`
	Letters    []string    `json:"guessedLetters"`
	Tags       []LetterTag `json:"tileColors"`
	Keys       KeyHints    `json:"keyColours"`
}

// IsEmpty reports whether nothing has been played.
func (s Snapshot) IsEmpty() bool {
	return len(s.Letters) == 0
}

// Tiles zips letters and tags back into board tiles.
func (s Snapshot) Tiles() []Tile {
	tiles := make([]Tile, len(s.Letters))
	for i := range s.Letters {
		tiles[i] = Tile{Letter: s.Letters[i], Tag: s.Tags[i]}
	}
	return tiles
}

// NewSnapshot builds a snapshot from a session's committed state.
func NewSnapshot(target string, tiles []Tile, keys KeyHints) Snapshot {
	snap := Snapshot{
		TargetWord: target,
		Letters:    make([]string, len(tiles)),
		Tags:       make([]LetterTag, len(tiles)),
		Keys:       keys.Clone(),
	}
	for i, t := range tiles {
		snap.Letters[i] = t.Letter
		snap.Tags[i] = t.Tag
	}
	return snap
}

// validate checks the structural invariants of a stored snapshot.
func (s Snapshot) validate() error {
	n := wordLength(s.TargetWord)
	switch {
	case n == 0:
		return fmt.Errorf("snapshot has no target word")
	case len(s.Letters) != len(s.Tags):
		return fmt.Errorf("snapshot has %d letters but %d tags", len(s.Letters), len(s.Tags))
	case len(s.Letters)%n != 0:
		return fmt.Errorf("snapshot has %d tiles, not a multiple of %d", len(s.Letters), n)
	case len(s.Letters)/n > MaxAttempts:
		return fmt.Errorf("snapshot has %d attempts, max %d", len(s.Letters)/n, MaxAttempts)
	}
	for i, tag := range s.Tags {
		if tag == Unknown {
			return fmt.Errorf("snapshot tile %d has no tag", i)
		}
	}
	return nil
}

// Persistence saves and restores session snapshots in a single KeyValue slot.
type Persistence struct {
	kv     KeyValue
	key    string
	logger *zap.Logger
}

// NewPersistence returns an adapter writing to key (DefaultSlot if empty).
func NewPersistence(kv KeyValue, key string, logger *zap.Logger) *Persistence {
	if key == "" {
		key = DefaultSlot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{kv: kv, key: key, logger: logger}
}

// Key returns the slot this adapter writes to.
func (p *Persistence) Key() string {
	return p.key
}

// Save writes snap unless it is empty or identical to what is stored.
func (p *Persistence) Save(ctx context.Context, snap Snapshot) error {
	if snap.IsEmpty() {
		return nil
	}
	if snap.Keys == nil {
		snap.Keys = KeyHints{}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	stored, ok, err := p.kv.Get(ctx, p.key)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", p.key, err)
	}
	if ok && bytes.Equal(stored, data) {
		p.logger.Debug("snapshot unchanged, skipping write", zap.String("key", p.key))
		return nil
	}

	if err := p.kv.Set(ctx, p.key, data); err != nil {
		return fmt.Errorf("write snapshot %s: %w", p.key, err)
	}
	p.logger.Debug("snapshot saved", zap.String("key", p.key), zap.Int("tiles", len(snap.Letters)))
	return nil
}

// Load returns the stored snapshot for targetWord. A missing slot yields an
// empty snapshot. A snapshot for another word, or one that cannot be decoded,
// is deleted and an empty snapshot is returned.
func (p *Persistence) Load(ctx context.Context, targetWord string) (Snapshot, error) {
	empty := Snapshot{TargetWord: targetWord, Keys: KeyHints{}}

	data, ok, err := p.kv.Get(ctx, p.key)
	if err != nil {
		return empty, fmt.Errorf("read snapshot %s: %w", p.key, err)
	}
	if !ok {
		return empty, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		p.logger.Warn("corrupt snapshot, removing", zap.String("key", p.key), zap.Error(err))
		return empty, p.evict(ctx)
	}

	if snap.TargetWord != targetWord {
		p.logger.Info("stale snapshot, removing",
			zap.String("key", p.key),
			zap.String("stored", snap.TargetWord),
			zap.String("today", targetWord))
		return empty, p.evict(ctx)
	}

	if err := snap.validate(); err != nil {
		p.logger.Warn("invalid snapshot, removing", zap.String("key", p.key), zap.Error(err))
		return empty, p.evict(ctx)
	}

	if snap.Keys == nil {
		snap.Keys = KeyHints{}
	}
	return snap, nil
}

func (p *Persistence) evict(ctx context.Context) error {
	if err := p.kv.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", p.key, err)
	}
	return nil
}
