package bayes

import (
	"math/big"
	"testing"
)

func FuzzClassifierInvariants(f *testing.F) {
	f.Add("spam", "buy now buy now")
	f.Add("ham", "hello world")
	f.Add("tech", "")
	f.Add("es", "Un importante punto de inflexión")

	f.Fuzz(func(t *testing.T, name string, sample string) {
		classifier := NewClassifier()
		classifier.Learn(sample, name).Learn(sample+" "+sample, name)

		cat, ok := classifier.categories.LookupCategory(name)
		if !ok {
			t.Fatalf("category %q missing after learn", name)
		}
		if cat.GetDocuments() != 2 {
			t.Fatalf("category %q has %d documents, want 2", name, cat.GetDocuments())
		}
		if cat.GetTally() != 3*len(classifier.Tokenize(sample)) {
			t.Fatalf("category %q tally %d does not match token count", name, cat.GetTally())
		}

		one := big.NewRat(1, 1)
		for _, token := range classifier.Tokenize(sample) {
			p := classifier.Probability(token, name)
			if p.Sign() <= 0 || p.Cmp(one) > 0 {
				t.Fatalf("probability of %q out of range: %s", token, p)
			}
		}

		most, err := classifier.Most(sample)
		if err != nil || most != name {
			t.Fatalf("unexpected most for single category: %q, %v", most, err)
		}
	})
}
