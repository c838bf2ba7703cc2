package main

import "github.com/hickeroar/textbayes/bayes"

// CategorySummary reports how much a category has learned.
type CategorySummary struct {
	TokenTally int
	Documents  int
}

func summarize(c *bayes.Classifier) map[string]CategorySummary {
	summaries := c.Summaries()
	out := make(map[string]CategorySummary, len(summaries))
	for name, summary := range summaries {
		out[name] = CategorySummary{TokenTally: summary.TokenTally, Documents: summary.Documents}
	}
	return out
}

// InfoResponse describes the classifier's training state.
type InfoResponse struct {
	Categories map[string]CategorySummary
	Order      []string
	Uneven     bool
}

// NewInfoResponse gets an assembled instance of InfoResponse
func NewInfoResponse(c *bayes.Classifier) *InfoResponse {
	order := c.Categories()
	if order == nil {
		order = []string{}
	}
	return &InfoResponse{
		Categories: summarize(c),
		Order:      order,
		Uneven:     c.IsUneven(),
	}
}

// TrainingResponse is returned by endpoints that change training data.
type TrainingResponse struct {
	Success    bool
	Categories map[string]CategorySummary
}

// NewTrainingResponse gets an assembled instance of TrainingResponse
func NewTrainingResponse(c *bayes.Classifier, success bool) *TrainingResponse {
	return &TrainingResponse{
		Success:    success,
		Categories: summarize(c),
	}
}

// MostResponse carries the top-ranked category and its score.
type MostResponse struct {
	Category string
	Score    string
}

// UnevenResponse reports the uneven mode after a change.
type UnevenResponse struct {
	Uneven bool
}

// SnapshotResponse carries the ID of a stored snapshot.
type SnapshotResponse struct {
	ID string
}
