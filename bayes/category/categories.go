package category

import "slices"

// Categories is the frequency store: every learned category, kept in the
// order it was first seen.
type Categories struct {
	order      []string
	categories map[string]*Category
	documents  int
}

// Summary is a value snapshot of one category's totals.
type Summary struct {
	TokenTally int
	Documents  int
}

// PersistedCategory is the exported state of one category.
type PersistedCategory struct {
	Name      string
	Tokens    map[string]int
	Tally     int
	Documents int
}

// NewCategories returns a pointer to an empty Categories store
func NewCategories() *Categories {
	return &Categories{
		categories: make(map[string]*Category),
	}
}

// AddCategory registers a new, empty category and returns it. An existing
// category of the same name is returned unchanged.
func (cats *Categories) AddCategory(name string) *Category {
	if cat, ok := cats.categories[name]; ok {
		return cat
	}

	cat := NewCategory(name)
	cats.categories[name] = cat
	cats.order = append(cats.order, name)

	return cat
}

// GetCategory returns a specified category, creating it if needed
func (cats *Categories) GetCategory(name string) *Category {
	return cats.AddCategory(name)
}

// LookupCategory returns a category without creating it
func (cats *Categories) LookupCategory(name string) (*Category, bool) {
	cat, ok := cats.categories[name]
	return cat, ok
}

// Learn records one statement's tokens under name. Every occurrence counts,
// and the document count grows by one even when tokens is empty.
func (cats *Categories) Learn(name string, tokens []string) {
	cat := cats.GetCategory(name)
	for _, token := range tokens {
		// count is a positive literal, TrainToken cannot fail here
		_ = cat.TrainToken(token, 1)
	}
	cat.addDocument()
	cats.documents++
}

// Names returns category names in insertion order.
func (cats *Categories) Names() []string {
	return slices.Clone(cats.order)
}

// Len returns the number of categories
func (cats *Categories) Len() int {
	return len(cats.order)
}

// TotalDocuments returns the number of statements learned across all categories
func (cats *Categories) TotalDocuments() int {
	return cats.documents
}

// Summaries returns per-category totals keyed by name.
func (cats *Categories) Summaries() map[string]Summary {
	out := make(map[string]Summary, len(cats.categories))
	for name, cat := range cats.categories {
		out[name] = Summary{TokenTally: cat.tally, Documents: cat.documents}
	}
	return out
}

// ExportStates returns a deep copy of every category in insertion order.
func (cats *Categories) ExportStates() []PersistedCategory {
	out := make([]PersistedCategory, 0, len(cats.order))
	for _, name := range cats.order {
		cat := cats.categories[name]
		out = append(out, PersistedCategory{
			Name:      name,
			Tokens:    cat.Tokens(),
			Tally:     cat.tally,
			Documents: cat.documents,
		})
	}
	return out
}

// ReplaceStates discards current data and loads states in order. States are
// trusted; callers validate them first.
func (cats *Categories) ReplaceStates(states []PersistedCategory) {
	cats.order = nil
	cats.categories = make(map[string]*Category, len(states))
	cats.documents = 0

	for _, state := range states {
		cat := cats.AddCategory(state.Name)
		for token, count := range state.Tokens {
			cat.tokens[token] = count
		}
		cat.tally = state.Tally
		cat.documents = state.Documents
		cats.documents += state.Documents
	}
}
