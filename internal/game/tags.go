package game

import "fmt"

// LetterTag is the evaluation of a single guessed letter.
// Ordering matters: Absent < Present < Correct.
type LetterTag int

const (
	Unknown LetterTag = iota
	Absent
	Present
	Correct
)

// Text forms, kept identical to the status strings the board renders.
const (
	TagAbsent  = "absent"
	TagPresent = "present"
	TagCorrect = "correct"
)

func (t LetterTag) String() string {
	switch t {
	case Absent:
		return TagAbsent
	case Present:
		return TagPresent
	case Correct:
		return TagCorrect
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t LetterTag) MarshalText() ([]byte, error) {
	if t == Unknown {
		return []byte{}, nil
	}
	s := t.String()
	if s == "" {
		return nil, fmt.Errorf("invalid letter tag %d", int(t))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *LetterTag) UnmarshalText(b []byte) error {
	tag, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = tag
	return nil
}

// ParseTag converts a text form back into a LetterTag.
func ParseTag(s string) (LetterTag, error) {
	switch s {
	case TagAbsent:
		return Absent, nil
	case TagPresent:
		return Present, nil
	case TagCorrect:
		return Correct, nil
	case "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unknown letter tag %q", s)
	}
}

// Tile is one revealed square on the board.
type Tile struct {
	Letter string    `json:"letter"`
	Tag    LetterTag `json:"status"`
}

// allCorrect reports whether every tile in row is Correct.
func allCorrect(row []Tile) bool {
	if len(row) == 0 {
		return false
	}
	for _, t := range row {
		if t.Tag != Correct {
			return false
		}
	}
	return true
}
