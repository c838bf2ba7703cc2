package category

import "testing"

func TestTrainTokenCreatesAndIncrements(t *testing.T) {
	cat := NewCategory("spam")

	if err := cat.TrainToken("buy", 2); err != nil {
		t.Fatalf("unexpected error training token: %v", err)
	}
	if err := cat.TrainToken("buy", 3); err != nil {
		t.Fatalf("unexpected error training token: %v", err)
	}
	if err := cat.TrainToken("now", 1); err != nil {
		t.Fatalf("unexpected error training token: %v", err)
	}

	if got := cat.GetTokenCount("buy"); got != 5 {
		t.Fatalf("unexpected buy count: got %d, want %d", got, 5)
	}
	if got := cat.GetTokenCount("now"); got != 1 {
		t.Fatalf("unexpected now count: got %d, want %d", got, 1)
	}
	if got := cat.GetTally(); got != 6 {
		t.Fatalf("unexpected tally: got %d, want %d", got, 6)
	}
	if got := cat.GetTokenCount("missing"); got != 0 {
		t.Fatalf("unexpected count for unseen token: got %d, want 0", got)
	}
}

func TestInvalidCountsReturnError(t *testing.T) {
	cat := NewCategory("ham")
	if err := cat.TrainToken("hello", 2); err != nil {
		t.Fatalf("unexpected error training token: %v", err)
	}

	if err := cat.TrainToken("hello", 0); err == nil {
		t.Fatal("expected error for zero training count")
	}
	if err := cat.TrainToken("hello", -3); err == nil {
		t.Fatal("expected error for negative training count")
	}

	if got := cat.GetTokenCount("hello"); got != 2 {
		t.Fatalf("expected count unchanged after invalid operations: got %d, want %d", got, 2)
	}
	if got := cat.GetTally(); got != 2 {
		t.Fatalf("expected tally unchanged after invalid operations: got %d, want %d", got, 2)
	}
}

func TestTokensReturnsCopy(t *testing.T) {
	cat := NewCategory("ham")
	_ = cat.TrainToken("hello", 1)

	tokens := cat.Tokens()
	tokens["hello"] = 100
	tokens["injected"] = 1

	if got := cat.GetTokenCount("hello"); got != 1 {
		t.Fatalf("expected internal count unchanged: got %d, want 1", got)
	}
	if got := cat.GetTokenCount("injected"); got != 0 {
		t.Fatalf("expected injected token to be absent, got %d", got)
	}
}
