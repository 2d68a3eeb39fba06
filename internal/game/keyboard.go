package game

import (
	"strings"

	"github.com/samber/lo"
)

// KeyHints maps an upper-case letter to the strongest tag seen for it.
type KeyHints map[string]LetterTag

// MergeTag folds next into existing. Correct is never downgraded and
// Present only ever upgrades to Correct; anything else takes next.
func MergeTag(existing, next LetterTag) LetterTag {
	switch existing {
	case Correct:
		return Correct
	case Present:
		if next == Correct {
			return Correct
		}
		return Present
	default:
		return next
	}
}

// Fold merges every tile of a row into the hints.
func (k KeyHints) Fold(row []Tile) {
	for _, t := range row {
		letter := strings.ToUpper(t.Letter)
		k[letter] = MergeTag(k[letter], t.Tag)
	}
}

// Get returns the hint for a letter, Unknown if none.
func (k KeyHints) Get(letter string) LetterTag {
	return k[strings.ToUpper(letter)]
}

// Clone returns an independent copy.
func (k KeyHints) Clone() KeyHints {
	return lo.Assign(KeyHints{}, k)
}
