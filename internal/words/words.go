// Package words loads the daily word schedule and answers the two word
// questions the game engine asks: what is today's word, and is a guess in
// the word library.
package words

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"biowordle/internal/game"
)

// scheduleFile is the on-disk shape of a schedule.
type scheduleFile struct {
	Words []game.TargetWord `json:"words" yaml:"words"`
}

// inputDateLayout parses both 2024-3-5 and 2024-03-05.
const inputDateLayout = "2006-1-2"

// ParseDate normalises a scheduled date to game.DateLayout.
func ParseDate(s string) (string, error) {
	d, err := time.Parse(inputDateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d.Format(game.DateLayout), nil
}

// Load reads a JSON or YAML schedule, chosen by file extension.
func Load(path string) ([]game.TargetWord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sf scheduleFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sf)
	default:
		err = json.Unmarshal(data, &sf)
	}
	if err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	return sf.Words, nil
}

// LoadAccepted reads an extra list of guessable words: either a JSON array
// of strings or one word per line.
func LoadAccepted(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parse accepted words %s: %w", path, err)
		}
		return list, nil
	}

	var list []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			list = append(list, w)
		}
	}
	return list, scanner.Err()
}

// Schedule is an in-memory word schedule. It is read-only after New and
// safe for concurrent use.
type Schedule struct {
	byDate   map[string]game.TargetWord
	known    map[string]struct{}
	accepted int
}

// New builds a schedule. Entries without a value or with an unparsable date
// are skipped; values are upper-cased. Accepted words extend the library
// used by IsKnownWord but are never scheduled.
func New(entries []game.TargetWord, accepted []string, logger *zap.Logger) *Schedule {
	if logger == nil {
		logger = zap.NewNop()
	}

	valid := lo.FilterMap(entries, func(e game.TargetWord, _ int) (game.TargetWord, bool) {
		value := strings.ToUpper(strings.TrimSpace(e.Value))
		if value == "" {
			logger.Warn("skipping scheduled word without value", zap.String("date", e.Date))
			return game.TargetWord{}, false
		}
		date, err := ParseDate(e.Date)
		if err != nil {
			logger.Warn("skipping scheduled word", zap.String("word", value), zap.Error(err))
			return game.TargetWord{}, false
		}
		return game.TargetWord{Value: value, Date: date}, true
	})

	s := &Schedule{
		byDate: make(map[string]game.TargetWord, len(valid)),
		known:  make(map[string]struct{}, len(valid)+len(accepted)),
	}
	lo.ForEach(valid, func(e game.TargetWord, _ int) {
		if prev, dup := s.byDate[e.Date]; dup {
			logger.Warn("date scheduled twice, keeping the later entry",
				zap.String("date", e.Date), zap.String("dropped", prev.Value), zap.String("kept", e.Value))
		}
		s.byDate[e.Date] = e
		s.known[e.Value] = struct{}{}
	})

	lo.ForEach(accepted, func(w string, _ int) {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w == "" {
			return
		}
		if _, ok := s.known[w]; !ok {
			s.accepted++
		}
		s.known[w] = struct{}{}
	})

	return s
}

// TodaysWord returns the word scheduled for the civil date of now.
func (s *Schedule) TodaysWord(_ context.Context, now time.Time) (game.TargetWord, error) {
	w, ok := s.byDate[now.Format(game.DateLayout)]
	if !ok {
		return game.TargetWord{}, game.ErrNoWordScheduled
	}
	return w, nil
}

// IsKnownWord reports whether word is scheduled on any date or accepted.
func (s *Schedule) IsKnownWord(word string) bool {
	_, ok := s.known[strings.ToUpper(strings.TrimSpace(word))]
	return ok
}

// Len returns the number of scheduled dates.
func (s *Schedule) Len() int {
	return len(s.byDate)
}

// AcceptedLen returns the number of accepted words that are not scheduled.
func (s *Schedule) AcceptedLen() int {
	return s.accepted
}
