// Package validate cross-checks plant group lengths against the expected plant
// counts and numbers every item of the field.
package validate

import (
	"math"

	"github.com/cyclopcam/logs"

	"github.com/1F47E/fieldmap/pkg/models"
)

// ExpectedLength returns the length a group should have: the spacing between
// its plants plus half a spacing reserved at each end of every segment for the
// boundary code.
func ExpectedLength(expectedCount int, spacing float64, segments int) float64 {
	return float64(expectedCount-1)*spacing + 2*(spacing/2)*float64(segments)
}

// Params configures length validation
type Params struct {
	PlantSpacing float64
	Tolerance    float64
	// ExpectedCounts maps group code names to the number of plants planted
	ExpectedCounts map[string]int
}

// CheckGroups flags every group whose measured length differs from its
// expected length by more than the tolerance. Groups are never removed.
// It returns the number of flagged groups.
func CheckGroups(log logs.Log, groups []*models.PlantGroup, p Params) int {
	flagged := 0
	for _, g := range groups {
		count, ok := p.ExpectedCounts[g.Name()]
		if !ok {
			g.AddFlag(models.FlagUnknownCount)
			log.Warnf("Group %q not found in expected plant counts, skipping length check", g.Name())
			flagged++
			continue
		}
		g.ExpectedCount = count
		g.ExpectedLength = ExpectedLength(count, p.PlantSpacing, len(g.Segments))

		actual := g.Length()
		diff := actual - g.ExpectedLength
		if math.Abs(diff) <= p.Tolerance {
			continue
		}
		flagged++
		if diff > 0 {
			g.AddFlag(models.FlagTooLong)
			log.Warnf("Group %q is %.2f m but %d plants need %.2f m, likely a missed code or wrong count",
				g.Name(), actual, count, g.ExpectedLength)
		} else {
			g.AddFlag(models.FlagTooShort)
			log.Warnf("Group %q is %.2f m but %d plants need %.2f m, likely an extra or duplicate code",
				g.Name(), actual, count, g.ExpectedLength)
		}
	}
	return flagged
}
