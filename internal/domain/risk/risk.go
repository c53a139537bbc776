// Package risk classifies agent-proposed actions into coarse security
// risk levels. Classification is pure pattern matching over the action
// payload; the confirmation policy layer decides what to do with the result.
package risk

// Level is the security risk classification of a proposed action.
type Level string

const (
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelUnknown Level = "unknown"
)

// Ordinal returns the comparable rank of a level. UNKNOWN ranks as MEDIUM:
// an unclassifiable action must never compare below a known-risky one.
func (l Level) Ordinal() int {
	switch l {
	case LevelLow:
		return 1
	case LevelHigh:
		return 3
	default: // LevelMedium, LevelUnknown, and anything malformed
		return 2
	}
}

// AtLeast reports whether l ranks at or above threshold.
func (l Level) AtLeast(threshold Level) bool {
	return l.Ordinal() >= threshold.Ordinal()
}

// ParseLevel converts a string into a Level. Unrecognized input maps to
// LevelUnknown rather than failing.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelLow, LevelMedium, LevelHigh:
		return Level(s)
	default:
		return LevelUnknown
	}
}

// Max returns the higher-ranked of two levels.
func Max(a, b Level) Level {
	if b.Ordinal() > a.Ordinal() {
		return b
	}
	return a
}
