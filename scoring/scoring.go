package scoring

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Key identifies a single option/choice pair in a rule table.
type Key struct {
	Option string `json:"option" yaml:"option"`
	Value  string `json:"value" yaml:"value"`
}

// Weights maps category names to the score delta a rule contributes.
type Weights map[string]int

// RuleTable maps option/choice pairs to their scoring contribution.
type RuleTable map[Key]Weights

// Recommendation is the outcome of a scoring run.
type Recommendation struct {
	Category   string         `json:"category"`
	Confidence float64        `json:"confidence_percent"`
	Scores     map[string]int `json:"scores"`
	Total      int            `json:"total"`

	order []string
}

// CategoryScore is one row of a score breakdown.
type CategoryScore struct {
	Category string `json:"category"`
	Score    int    `json:"score"`
}

// Compute accumulates the weights of every selected option/choice pair and
// returns the highest scoring category. Ties resolve to the category declared
// first. Pairs missing from the table contribute nothing.
func Compute(selections map[string]string, table RuleTable, categories []string) Recommendation {
	session := NewSession(categories)
	for option, value := range selections {
		if weights, ok := table[Key{Option: option, Value: value}]; ok {
			session.Add(weights)
		}
	}
	return session.Result()
}

// Session accumulates scores for a single interaction. It is not safe for
// concurrent use; create one per request.
type Session struct {
	categories []string
	scores     map[string]int
}

// NewSession starts a session with every category at zero. Duplicate category
// names keep their first position.
func NewSession(categories []string) *Session {
	s := &Session{
		categories: make([]string, 0, len(categories)),
		scores:     make(map[string]int, len(categories)),
	}
	for _, c := range categories {
		if _, dup := s.scores[c]; dup {
			continue
		}
		s.categories = append(s.categories, c)
		s.scores[c] = 0
	}
	return s
}

// Add applies a set of weights. Weights for undeclared categories are ignored.
func (s *Session) Add(weights Weights) {
	for category, delta := range weights {
		if _, ok := s.scores[category]; !ok {
			continue
		}
		s.scores[category] += delta
	}
}

// Reset zeroes every score.
func (s *Session) Reset() {
	for c := range s.scores {
		s.scores[c] = 0
	}
}

// Result picks the winning category and computes its confidence.
func (s *Session) Result() Recommendation {
	rec := Recommendation{
		Scores: make(map[string]int, len(s.scores)),
		order:  append([]string(nil), s.categories...),
	}
	if len(s.categories) == 0 {
		return rec
	}

	best := s.categories[0]
	for _, c := range s.categories {
		score := s.scores[c]
		rec.Scores[c] = score
		rec.Total += score
		if score > s.scores[best] {
			best = c
		}
	}

	if rec.Total == 0 {
		rec.Category = s.categories[0]
		return rec
	}

	rec.Category = best
	rec.Confidence = Percent(s.scores[best], rec.Total)
	return rec
}

// Ranked returns the breakdown sorted by score, highest first. Equal scores
// keep their declared order.
func (r Recommendation) Ranked() []CategoryScore {
	order := r.order
	if len(order) == 0 {
		for c := range r.Scores {
			order = append(order, c)
		}
		sort.Strings(order)
	}

	ranked := make([]CategoryScore, 0, len(order))
	for _, c := range order {
		ranked = append(ranked, CategoryScore{Category: c, Score: r.Scores[c]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Leaders returns every category sharing the highest score, in declared
// order. It is empty only when there are no categories.
func (r Recommendation) Leaders() []string {
	order := r.order
	if len(order) == 0 {
		for c := range r.Scores {
			order = append(order, c)
		}
		sort.Strings(order)
	}

	var leaders []string
	for _, c := range order {
		switch {
		case len(leaders) == 0 || r.Scores[c] > r.Scores[leaders[0]]:
			leaders = []string{c}
		case r.Scores[c] == r.Scores[leaders[0]]:
			leaders = append(leaders, c)
		}
	}
	return leaders
}

var hundred = decimal.NewFromInt(100)

// Percent returns part/whole*100 clamped to [0, 100]. The value is not
// rounded; format it for display. A zero whole yields 0.
func Percent(part, whole int) float64 {
	return ratio(part, whole).InexactFloat64()
}

func ratio(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromInt(int64(part)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(whole)))

	switch {
	case pct.IsNegative():
		return decimal.Zero
	case pct.GreaterThan(hundred):
		return hundred
	}
	return pct
}
