package category

import (
	"errors"
	"maps"
)

var errInvalidCount = errors.New("token count must be positive")

// Category holds the word frequencies and document count learned for one label.
type Category struct {
	name      string
	tokens    map[string]int
	tally     int
	documents int
}

// NewCategory returns a pointer to an empty Category
func NewCategory(name string) *Category {
	return &Category{
		name:   name,
		tokens: make(map[string]int),
	}
}

// Name returns the category label
func (cat *Category) Name() string {
	return cat.name
}

// TrainToken adds count occurrences of word to this category
func (cat *Category) TrainToken(word string, count int) error {
	if count <= 0 {
		return errInvalidCount
	}

	cat.tokens[word] += count
	cat.tally += count

	return nil
}

// GetTokenCount returns how many times word was seen in this category
func (cat *Category) GetTokenCount(word string) int {
	return cat.tokens[word]
}

// GetTally returns the total of all token counts for this category
func (cat *Category) GetTally() int {
	return cat.tally
}

// GetDocuments returns how many statements were learned under this category
func (cat *Category) GetDocuments() int {
	return cat.documents
}

// Tokens returns a copy of the word counts.
func (cat *Category) Tokens() map[string]int {
	return maps.Clone(cat.tokens)
}

func (cat *Category) addDocument() {
	cat.documents++
}
