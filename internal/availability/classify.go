package availability

// Level is the visual density class of a slot.
type Level string

const (
	LevelEmpty      Level = "empty"
	LevelLow        Level = "low"
	LevelMediumLow  Level = "medium-low"
	LevelMediumHigh Level = "medium-high"
	LevelHigh       Level = "high"
	LevelSelf       Level = "self"
)

// Classify maps count occupants out of total participants to a Level.
// A slot the viewer selected is always LevelSelf.
func Classify(count, total int, self bool) Level {
	if self {
		return LevelSelf
	}
	if count <= 0 || total <= 0 {
		return LevelEmpty
	}
	// ratio thresholds .25/.5/.75 compared without floating point
	switch {
	case count*4 <= total:
		return LevelLow
	case count*2 <= total:
		return LevelMediumLow
	case count*4 <= total*3:
		return LevelMediumHigh
	default:
		return LevelHigh
	}
}
