package scoring

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Band is a grading level reached once the percentage is at least Min.
type Band struct {
	Name            string   `json:"name" yaml:"name"`
	Min             float64  `json:"min" yaml:"min"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// Grading is the outcome of placing a point total into bands.
type Grading struct {
	Points          int      `json:"points"`
	MaxPoints       int      `json:"max_points"`
	Percent         float64  `json:"percent"`
	Level           string   `json:"level"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Grade converts points out of maxPoints into a percentage and picks the highest
// band whose Min does not exceed it. Bands are compared against the exact
// ratio, so 79.998% stays below an 80% band. Below every band, the lowest
// band applies.
func Grade(points, maxPoints int, bands []Band) Grading {
	g := Grading{Points: points, MaxPoints: maxPoints}
	pct := decimal.Zero
	if maxPoints > 0 {
		pct = ratio(points, maxPoints)
	}
	g.Percent = pct.InexactFloat64()
	if len(bands) == 0 {
		return g
	}

	sorted := append([]Band(nil), bands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Min > sorted[j].Min
	})

	chosen := sorted[len(sorted)-1]
	for _, b := range sorted {
		if pct.GreaterThanOrEqual(decimal.NewFromFloat(b.Min)) {
			chosen = b
			break
		}
	}

	g.Level = chosen.Name
	g.Recommendations = append([]string(nil), chosen.Recommendations...)
	return g
}
