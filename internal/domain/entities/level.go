package entities

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownLevel = errors.New("unknown level")

// Level is a proficiency tier. Tiers are totally ordered from A1 to C2.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Levels lists every tier in ascending order.
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// ParseLevel normalizes s ("b1", " B1 ") into a known Level.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if l.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// Index returns the position of l in Levels, or -1 if l is not a known tier.
func (l Level) Index() int {
	for i, v := range Levels {
		if v == l {
			return i
		}
	}
	return -1
}

// Above reports whether l is a harder tier than other.
func (l Level) Above(other Level) bool {
	return l.Index() > other.Index()
}

func (l Level) String() string {
	return string(l)
}

// LevelsAfter returns the tiers strictly above l in ascending order.
func LevelsAfter(l Level) []Level {
	i := l.Index()
	if i < 0 {
		return nil
	}
	out := make([]Level, len(Levels)-i-1)
	copy(out, Levels[i+1:])
	return out
}
