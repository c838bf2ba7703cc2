package bayes

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hickeroar/textbayes/bayes/category"
)

// ModelVersion is the version written into every saved model.
const ModelVersion = 1
const defaultModelFilePath = "/tmp/textbayes.gob"

type tempFile interface {
	io.Writer
	Sync() error
	Close() error
	Name() string
}

var (
	errNilWriter            = errors.New("writer is nil")
	errNilReader            = errors.New("reader is nil")
	errPathNotAbsolute      = errors.New("path must be absolute")
	errUnsupportedVersion   = errors.New("unsupported model version")
	errDuplicateCategory    = errors.New("duplicate category in persisted model")
	errInvalidTokenCount    = errors.New("invalid token count in persisted model")
	errInvalidCategoryTally = errors.New("invalid category tally in persisted model")
	errInvalidDocumentCount = errors.New("invalid document count in persisted model")
	createTemp              = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }
	renameFile              = os.Rename
	removeFile              = os.Remove
)

// Model is the complete trained state of a classifier. The custom
// tokenizer is not part of it.
type Model struct {
	Version    int
	Uneven     bool
	Categories []category.PersistedCategory
}

// Snapshot returns a deep copy of the classifier state.
func (c *Classifier) Snapshot() Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Model{
		Version:    ModelVersion,
		Uneven:     c.uneven,
		Categories: c.categories.ExportStates(),
	}
}

// Restore validates model and replaces all classifier state with it.
func (c *Classifier) Restore(model Model) error {
	if err := validateModel(model); err != nil {
		return err
	}

	cats := category.NewCategories()
	cats.ReplaceStates(model.Categories)

	c.mu.Lock()
	c.categories = cats
	c.uneven = model.Uneven
	c.mu.Unlock()

	return nil
}

// Save writes classifier model data to a writer using gob encoding.
func (c *Classifier) Save(w io.Writer) error {
	if w == nil {
		return errNilWriter
	}

	if err := gob.NewEncoder(w).Encode(c.Snapshot()); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	return nil
}

// Load reads classifier model data from a gob-encoded reader and replaces state.
func (c *Classifier) Load(r io.Reader) error {
	if r == nil {
		return errNilReader
	}

	var model Model
	if err := gob.NewDecoder(r).Decode(&model); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}

	return c.Restore(model)
}

// SaveToFile writes classifier model data to a file atomically. An empty
// path selects the default model location.
func (c *Classifier) SaveToFile(path string) error {
	path = resolveModelPath(path)
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q", errPathNotAbsolute, path)
	}

	dir := filepath.Dir(path)
	tempFile, err := createTemp(dir, ".textbayes-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer removeFile(tempPath)

	if err := c.Save(tempFile); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := renameFile(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// LoadFromFile reads classifier model data from a gob-encoded file.
func (c *Classifier) LoadFromFile(path string) error {
	path = resolveModelPath(path)
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q", errPathNotAbsolute, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

func validateModel(model Model) error {
	if model.Version != ModelVersion {
		return fmt.Errorf("%w: %d", errUnsupportedVersion, model.Version)
	}

	seen := make(map[string]struct{}, len(model.Categories))
	for _, cat := range model.Categories {
		if _, ok := seen[cat.Name]; ok {
			return fmt.Errorf("%w: %q", errDuplicateCategory, cat.Name)
		}
		seen[cat.Name] = struct{}{}

		if cat.Documents <= 0 {
			return fmt.Errorf("%w for %q: %d", errInvalidDocumentCount, cat.Name, cat.Documents)
		}
		if cat.Tally < 0 {
			return fmt.Errorf("%w for %q: %d", errInvalidCategoryTally, cat.Name, cat.Tally)
		}

		sum := 0
		for token, count := range cat.Tokens {
			if count <= 0 {
				return fmt.Errorf("%w for %q token %q: %d", errInvalidTokenCount, cat.Name, token, count)
			}
			sum += count
		}

		if sum != cat.Tally {
			return fmt.Errorf("%w for %q: tally=%d sum=%d", errInvalidCategoryTally, cat.Name, cat.Tally, sum)
		}
	}

	return nil
}

func resolveModelPath(path string) string {
	if path == "" {
		return defaultModelFilePath
	}
	return path
}
