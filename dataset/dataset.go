// Package dataset loads labeled training statements from YAML files.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hickeroar/textbayes/bayes"
)

// ErrMissingCategory is returned when a sample has no category.
var ErrMissingCategory = errors.New("sample has no category")

// Sample is one labeled statement.
type Sample struct {
	Category string `yaml:"category"`
	Text     string `yaml:"text"`
}

// Dataset is a YAML training corpus:
//
//	uneven: true
//	samples:
//	  - category: positive
//	    text: Symfony is the best
type Dataset struct {
	Uneven  bool     `yaml:"uneven"`
	Samples []Sample `yaml:"samples"`
}

// Parse decodes a dataset from r.
func Parse(r io.Reader) (*Dataset, error) {
	var ds Dataset
	if err := yaml.NewDecoder(r).Decode(&ds); err != nil {
		if errors.Is(err, io.EOF) {
			return &ds, nil
		}
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	for i, sample := range ds.Samples {
		if sample.Category == "" {
			return nil, fmt.Errorf("sample %d: %w", i, ErrMissingCategory)
		}
	}

	return &ds, nil
}

// LoadFile reads a dataset from a YAML file.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Train feeds every sample to the classifier in file order and applies the
// dataset's uneven setting when it is enabled.
func (ds *Dataset) Train(c *bayes.Classifier) {
	for _, sample := range ds.Samples {
		c.Learn(sample.Text, sample.Category)
	}
	if ds.Uneven {
		c.Uneven(true)
	}
}

// Categories returns the distinct categories in first-seen order.
func (ds *Dataset) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sample := range ds.Samples {
		if _, ok := seen[sample.Category]; ok {
			continue
		}
		seen[sample.Category] = struct{}{}
		out = append(out, sample.Category)
	}
	return out
}
