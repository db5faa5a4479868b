package monitor

// TrailingLevel is one rung of the profit-protection ladder: once unrealized
// P&L crosses Threshold the rung is armed, and a later drop below LockIn
// (both in percent of entry price) forces an exit.
type TrailingLevel struct {
	Threshold float64
	LockIn    float64
}

// DefaultLadder returns the 14-rung trailing ladder. Rungs are 0-indexed and
// strictly increasing in both threshold and lock-in, so the highest rung whose
// threshold has been crossed uniquely identifies the protection in force.
func DefaultLadder() []TrailingLevel {
	return []TrailingLevel{
		{Threshold: 1.5, LockIn: 0.75},
		{Threshold: 2.25, LockIn: 1.25},
		{Threshold: 2.75, LockIn: 1.75},
		{Threshold: 4.0, LockIn: 2.5},
		{Threshold: 5.0, LockIn: 3.0},
		{Threshold: 7.0, LockIn: 4.5},
		{Threshold: 8.0, LockIn: 5.5},
		{Threshold: 10.0, LockIn: 7.0},
		{Threshold: 12.0, LockIn: 9.0},
		{Threshold: 15.0, LockIn: 11.0},
		{Threshold: 18.0, LockIn: 14.0},
		{Threshold: 20.0, LockIn: 16.0},
		{Threshold: 25.0, LockIn: 20.0},
		{Threshold: 30.0, LockIn: 25.0},
	}
}

// LevelFor returns the index of the highest rung whose threshold pnlPct has
// reached, or -1 when even the first rung is out of reach.
func LevelFor(ladder []TrailingLevel, pnlPct float64) int {
	level := -1
	for i, rung := range ladder {
		if pnlPct < rung.Threshold {
			break
		}
		level = i
	}
	return level
}
