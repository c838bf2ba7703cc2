package bayes

import (
	"encoding/json"
	"math/big"
	"slices"
)

// ScoreDigits is the number of significant digits in a rendered score.
const ScoreDigits = 40

const scorePrecision = 256

// Score is the likelihood of a statement under one category. The fraction
// is kept unreduced; Likelihood reduces it on demand.
type Score struct {
	Category string
	num, den *big.Int
}

// NewScore returns a Score holding likelihood for category.
func NewScore(category string, likelihood *big.Rat) Score {
	if likelihood == nil {
		return Score{Category: category}
	}
	return Score{
		Category: category,
		num:      new(big.Int).Set(likelihood.Num()),
		den:      new(big.Int).Set(likelihood.Denom()),
	}
}

// Likelihood returns the exact likelihood in lowest terms.
func (s Score) Likelihood() *big.Rat {
	if s.num == nil || s.den == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(s.num, s.den)
}

// Cmp compares s with o by cross-multiplication and returns -1, 0 or +1.
func (s Score) Cmp(o Score) int {
	if s.num == nil || o.num == nil {
		return s.sign() - o.sign()
	}
	left := new(big.Int).Mul(s.num, o.den)
	right := new(big.Int).Mul(o.num, s.den)
	return left.Cmp(right)
}

func (s Score) sign() int {
	if s.num == nil {
		return 0
	}
	return s.num.Sign()
}

// Decimal renders the likelihood as a decimal string with ScoreDigits
// significant digits. Very small values use exponent notation.
func (s Score) Decimal() string {
	if s.num == nil || s.den == nil {
		return "0"
	}
	num := new(big.Float).SetPrec(scorePrecision).SetInt(s.num)
	den := new(big.Float).SetPrec(scorePrecision).SetInt(s.den)
	return new(big.Float).SetPrec(scorePrecision).Quo(num, den).Text('g', ScoreDigits)
}

// MarshalJSON encodes the score with its likelihood as a decimal string.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Category string `json:"category"`
		Score    string `json:"score"`
	}{
		Category: s.Category,
		Score:    s.Decimal(),
	})
}

// Ranking lists scores from most to least likely.
type Ranking []Score

// Top returns the most likely score, or false when the ranking is empty.
func (r Ranking) Top() (Score, bool) {
	if len(r) == 0 {
		return Score{}, false
	}
	return r[0], true
}

// Categories returns the ranked category names.
func (r Ranking) Categories() []string {
	names := make([]string, len(r))
	for i, score := range r {
		names[i] = score.Category
	}
	return names
}

// Decimals returns rendered scores keyed by category.
func (r Ranking) Decimals() map[string]string {
	out := make(map[string]string, len(r))
	for _, score := range r {
		out[score.Category] = score.Decimal()
	}
	return out
}

// Guess scores statement against every learned category and returns them
// ordered by descending likelihood. Equal scores keep learning order.
func (c *Classifier) Guess(statement string) Ranking {
	tokens := c.Tokenize(statement)
	occurrences := countOccurrences(tokens)

	c.mu.RLock()
	defer c.mu.RUnlock()

	names := c.categories.Names()
	ranking := make(Ranking, 0, len(names))
	for _, name := range names {
		ranking = append(ranking, c.score(name, occurrences, len(tokens)))
	}

	slices.SortStableFunc(ranking, func(a, b Score) int {
		return b.Cmp(a)
	})

	return ranking
}

// Most returns the most likely category for statement, or ErrUntrained when
// nothing has been learned yet.
func (c *Classifier) Most(statement string) (string, error) {
	top, ok := c.Guess(statement).Top()
	if !ok {
		return "", ErrUntrained
	}
	return top.Category, nil
}
