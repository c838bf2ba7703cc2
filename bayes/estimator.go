package bayes

import "math/big"

// Probability returns the add-one smoothed frequency of word in the named
// category: (count+1)/(total+1). A category with no data yields 1.
func (c *Classifier) Probability(word, name string) *big.Rat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count, total := c.wordCounts(word, name)
	return big.NewRat(int64(count+1), int64(total+1))
}

// Prior returns the prior weight of the named category. It is 1 for every
// category unless uneven mode is on, in which case it is the smoothed share
// of learned documents: (docs+1)/(allDocs+1).
func (c *Classifier) Prior(name string) *big.Rat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prior(name)
}

// Likelihood returns the unnormalized score of statement under the named
// category: the prior times the smoothed probability of every token.
func (c *Classifier) Likelihood(statement, name string) *big.Rat {
	tokens := c.Tokenize(statement)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.score(name, countOccurrences(tokens), len(tokens)).Likelihood()
}

func (c *Classifier) wordCounts(word, name string) (count, total int) {
	cat, ok := c.categories.LookupCategory(name)
	if !ok {
		return 0, 0
	}
	return cat.GetTokenCount(word), cat.GetTally()
}

func (c *Classifier) prior(name string) *big.Rat {
	if !c.uneven {
		return big.NewRat(1, 1)
	}

	docs := 0
	if cat, ok := c.categories.LookupCategory(name); ok {
		docs = cat.GetDocuments()
	}
	return big.NewRat(int64(docs+1), int64(c.categories.TotalDocuments()+1))
}

// countOccurrences maps every distinct token to how often it appears.
func countOccurrences(tokens []string) map[string]int {
	occurrences := make(map[string]int, len(tokens))
	for _, token := range tokens {
		occurrences[token]++
	}
	return occurrences
}

// score builds the likelihood of a statement with n tokens as an unreduced
// fraction. Every token shares the denominator total+1, so it is raised to
// the n-th power once. Numerator factors are grouped by base, raised with
// Exp and combined with a product tree.
func (c *Classifier) score(name string, occurrences map[string]int, n int) Score {
	prior := c.prior(name)

	total := 0
	exponents := make(map[int64]int64)
	if cat, ok := c.categories.LookupCategory(name); ok {
		total = cat.GetTally()
		for token, k := range occurrences {
			// unseen tokens contribute a factor of 1
			if count := cat.GetTokenCount(token); count > 0 {
				exponents[int64(count+1)] += int64(k)
			}
		}
	}

	factors := make([]*big.Int, 0, len(exponents)+1)
	factors = append(factors, new(big.Int).Set(prior.Num()))
	for base, k := range exponents {
		factors = append(factors, new(big.Int).Exp(big.NewInt(base), big.NewInt(k), nil))
	}

	den := new(big.Int).Exp(big.NewInt(int64(total+1)), big.NewInt(int64(n)), nil)
	den.Mul(den, prior.Denom())

	return Score{Category: name, num: product(factors), den: den}
}

// product multiplies factors pairwise so operands stay balanced in size.
func product(factors []*big.Int) *big.Int {
	switch len(factors) {
	case 0:
		return big.NewInt(1)
	case 1:
		return factors[0]
	}
	mid := len(factors) / 2
	return new(big.Int).Mul(product(factors[:mid]), product(factors[mid:]))
}
