package game

import (
	"strings"
	"unicode/utf8"
)

// Evaluate compares guess to target and returns one tag per position.
// Comparison is case-insensitive. Exact matches are resolved first and
// consume their target letter; remaining letters are then matched left to
// right against unconsumed target letters, so a repeated letter never earns
// more Correct/Present tags than it occurs in target.
// Returns nil when the two words differ in length.
func Evaluate(guess, target string) []LetterTag {
	g := []rune(strings.ToUpper(guess))
	t := []rune(strings.ToUpper(target))
	if len(g) != len(t) {
		return nil
	}

	tags := make([]LetterTag, len(g))
	remaining := make(map[rune]int, len(t))

	for i := range g {
		if g[i] == t[i] {
			tags[i] = Correct
			continue
		}
		remaining[t[i]]++
	}

	for i := range g {
		if tags[i] == Correct {
			continue
		}
		if remaining[g[i]] > 0 {
			tags[i] = Present
			remaining[g[i]]--
			continue
		}
		tags[i] = Absent
	}

	return tags
}

// EvaluateTiles is Evaluate paired with the upper-cased guess letters.
func EvaluateTiles(guess, target string) []Tile {
	tags := Evaluate(guess, target)
	if tags == nil {
		return nil
	}
	letters := []rune(strings.ToUpper(guess))
	tiles := make([]Tile, len(tags))
	for i, tag := range tags {
		tiles[i] = Tile{Letter: string(letters[i]), Tag: tag}
	}
	return tiles
}

// wordLength counts letters, not bytes.
func wordLength(w string) int {
	return utf8.RuneCountInString(w)
}
