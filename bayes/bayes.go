// Package bayes implements a multinomial naive Bayes text classifier with
// Laplace smoothing and exact rational scoring.
package bayes

import (
	"errors"
	"sync"

	"github.com/hickeroar/textbayes/bayes/category"
	"github.com/hickeroar/textbayes/tokenizer"
)

// ErrUntrained is returned by Most when no category has been learned.
var ErrUntrained = errors.New("classifier is untrained: no categories available")

// Classifier learns word frequencies per category and ranks categories for
// new statements. It is safe for concurrent use.
type Classifier struct {
	categories *category.Categories
	tokenizer  tokenizer.Func
	uneven     bool
	mu         sync.RWMutex
}

// NewClassifier returns a pointer to an empty Classifier using the default tokenizer
func NewClassifier() *Classifier {
	return &Classifier{
		categories: category.NewCategories(),
	}
}

// SetTokenizer installs a custom tokenizer. Its output is used verbatim.
// Passing nil restores the default tokenizer.
func (c *Classifier) SetTokenizer(fn tokenizer.Func) {
	c.mu.Lock()
	c.tokenizer = fn
	c.mu.Unlock()
}

// Tokenize splits text with the active tokenizer. The tokenizer runs
// outside the classifier lock, so a custom one may call back into c.
func (c *Classifier) Tokenize(text string) []string {
	c.mu.RLock()
	fn := c.tokenizer
	c.mu.RUnlock()

	if fn == nil {
		return tokenizer.Default(text)
	}
	return fn(text)
}

// Learn counts every token of statement under name and records one more
// document for it. It returns the classifier so calls can be chained.
func (c *Classifier) Learn(statement, name string) *Classifier {
	tokens := c.Tokenize(statement)

	c.mu.Lock()
	c.categories.Learn(name, tokens)
	c.mu.Unlock()
	return c
}

// Uneven switches document-frequency priors on or off.
func (c *Classifier) Uneven(enabled bool) *Classifier {
	c.mu.Lock()
	c.uneven = enabled
	c.mu.Unlock()
	return c
}

// IsUneven reports whether document-frequency priors are in use.
func (c *Classifier) IsUneven() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uneven
}

// Words returns a copy of the word counts learned for name. Unknown
// categories yield an empty map.
func (c *Classifier) Words(name string) map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cat, ok := c.categories.LookupCategory(name)
	if !ok {
		return map[string]int{}
	}
	return cat.Tokens()
}

// AllWords returns a copy of the word counts of every category.
func (c *Classifier) AllWords() map[string]map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]int, c.categories.Len())
	for _, name := range c.categories.Names() {
		cat, _ := c.categories.LookupCategory(name)
		out[name] = cat.Tokens()
	}
	return out
}

// Documents returns how many statements were learned per category.
func (c *Classifier) Documents() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int, c.categories.Len())
	for name, summary := range c.categories.Summaries() {
		out[name] = summary.Documents
	}
	return out
}

// Categories returns category names in the order they were first learned.
func (c *Classifier) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categories.Names()
}

// Summaries returns per-category totals.
func (c *Classifier) Summaries() map[string]category.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categories.Summaries()
}

// Flush empties the categories to remove all training data
func (c *Classifier) Flush() {
	c.mu.Lock()
	c.categories = category.NewCategories()
	c.mu.Unlock()
}
