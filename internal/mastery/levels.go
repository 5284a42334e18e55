package mastery

import (
	"fmt"
	"sort"
)

// Band is one contiguous mastery level over [Min, next band's Min).
// The last band extends to 100 inclusive.
type Band struct {
	Name string
	Min  float64
}

// Bands is an ordered partition of [0,100] into discrete levels.
type Bands []Band

// DefaultBands returns the standard level partition. Cut points are a
// display/configuration concern; the partition shape is the invariant.
func DefaultBands() Bands {
	return Bands{
		{Name: "novice", Min: 0},
		{Name: "developing", Min: 40},
		{Name: "proficient", Min: 70},
		{Name: "mastered", Min: 90},
	}
}

// Validate checks that the bands are non-empty, start at 0, and are
// strictly ascending — together that guarantees a contiguous, gap-free,
// non-overlapping cover of [0,100].
func (b Bands) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("mastery bands: empty partition")
	}
	if b[0].Min != 0 {
		return fmt.Errorf("mastery bands: first band starts at %.1f, want 0", b[0].Min)
	}
	if !sort.SliceIsSorted(b, func(i, j int) bool { return b[i].Min < b[j].Min }) {
		return fmt.Errorf("mastery bands: cut points not ascending")
	}
	for i := 1; i < len(b); i++ {
		if b[i].Min == b[i-1].Min {
			return fmt.Errorf("mastery bands: duplicate cut point %.1f", b[i].Min)
		}
		if b[i].Min > 100 {
			return fmt.Errorf("mastery bands: cut point %.1f above 100", b[i].Min)
		}
	}
	return nil
}

// LevelFor returns the band name containing the given score.
func (b Bands) LevelFor(score float64) string {
	if len(b) == 0 {
		return ""
	}
	level := b[0].Name
	for _, band := range b {
		if score >= band.Min {
			level = band.Name
		}
	}
	return level
}
