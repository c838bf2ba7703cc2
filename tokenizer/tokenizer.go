// Package tokenizer turns raw statements into the word tokens the
// classifier counts.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Func splits a statement into an ordered sequence of tokens.
type Func func(string) []string

// ErrUnsupportedLanguage is returned by Stemming for languages snowball cannot stem.
var ErrUnsupportedLanguage = errors.New("unsupported stemming language")

// Default lower-cases text and returns every maximal run of Unicode letters.
// Input is NFC-normalized first so decomposed accents stay inside their word.
func Default(text string) []string {
	if text == "" {
		return nil
	}

	// Casers are stateful, so each call gets its own.
	lowered := cases.Lower(language.Und).String(norm.NFC.String(text))

	var tokens []string
	start := -1
	for i, r := range lowered {
		switch {
		case unicode.IsLetter(r):
			if start < 0 {
				start = i
			}
		case start >= 0 && unicode.Is(unicode.Mn, r):
			// a mark that did not compose belongs to the preceding letter
		default:
			if start >= 0 {
				tokens = append(tokens, lowered[start:i])
				start = -1
			}
		}
	}
	if start >= 0 {
		tokens = append(tokens, lowered[start:])
	}

	return tokens
}

// Stemming returns a Func that runs Default and then reduces every token
// to its snowball stem for the given language (e.g. "english", "spanish").
func Stemming(lang string) (Func, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if _, err := snowball.Stem("probe", lang, true); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	return func(text string) []string {
		tokens := Default(text)
		for i, token := range tokens {
			stemmed, err := snowball.Stem(token, lang, true)
			if err == nil && stemmed != "" {
				tokens[i] = stemmed
			}
		}
		return tokens
	}, nil
}
