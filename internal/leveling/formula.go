package leveling

import "math"

// levelCurve is the K constant of the level curve. Observed behavior of the
// formula, including its floor rounding, is load-bearing: level boundaries
// computed here end up in user-facing text.
const levelCurve = 0.075

// LevelForXP returns the level reached with the given XP.
// level = floor(K * sqrt(xp)); LevelForXP(0) == 0.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Floor(levelCurve * math.Sqrt(float64(xp))))
}

// XPForLevel returns the XP boundary of a level: xp = floor((level / K)^2).
// It is the floor-based inverse of LevelForXP; round-tripping a level
// through both can undershoot by one at boundaries, and that quirk is
// intentional.
func XPForLevel(level int) int64 {
	if level <= 0 {
		return 0
	}
	ratio := float64(level) / levelCurve
	return int64(math.Floor(ratio * ratio))
}

// LevelProgressPercent returns how far (0..100) xp has advanced between its
// current level boundary and the next one.
func LevelProgressPercent(xp int64) int {
	level := LevelForXP(xp)
	current := XPForLevel(level)
	next := XPForLevel(level + 1)
	remaining := float64(next-xp) / float64(next-current)
	pct := 100 - int(math.Ceil(remaining*100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
