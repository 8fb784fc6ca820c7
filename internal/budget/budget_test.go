package budget

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"hello", 1},
		{"hello world", 2},
		{"  spaced   out\twords\nacross lines ", 4},
		{"The quick brown fox jumps over the lazy dog", 9},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.in); got != c.want {
			t.Fatalf("EstimateTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEstimateTokensDeterministic(t *testing.T) {
	s := "one two three four"
	first := EstimateTokens(s)
	for i := 0; i < 5; i++ {
		if got := EstimateTokens(s); got != first {
			t.Fatalf("estimator must be deterministic, got %d then %d", first, got)
		}
	}
}

func TestTargetTokens(t *testing.T) {
	cases := []struct {
		original int
		pct      int
		want     int
	}{
		{9, 50, 5}, // round(4.5) = 5 per half-up rounding
		{9, 100, 9},
		{10, 50, 5},
		{10, 150, 15},
		{1, 10, 1}, // floor at 1
		{0, 50, 1},
		{3, 33, 1},
	}
	for _, c := range cases {
		if got := TargetTokens(c.original, c.pct); got != c.want {
			t.Fatalf("TargetTokens(%d, %d) = %d, want %d", c.original, c.pct, got, c.want)
		}
	}
}

func TestMaxCompletionTokens(t *testing.T) {
	// Short input hits the floor regardless of direction.
	if got := MaxCompletionTokens(10, false, 1); got != 1000 {
		t.Fatalf("short input should floor at 1000, got %d", got)
	}
	// Expansion budgets three times the input plus padding.
	if got := MaxCompletionTokens(1000, true, 1); got != 3500 {
		t.Fatalf("expansion budget = %d, want 3500", got)
	}
	// Compression budgets twice the input plus padding.
	if got := MaxCompletionTokens(1000, false, 1); got != 2500 {
		t.Fatalf("compression budget = %d, want 2500", got)
	}
	// Multiple slots scale the body, not the padding.
	if got := MaxCompletionTokens(1000, false, 3); got != 6500 {
		t.Fatalf("3-slot compression budget = %d, want 6500", got)
	}
	if got := MaxCompletionTokens(100, true, 0); got != MaxCompletionTokens(100, true, 1) {
		t.Fatalf("zero slots should behave like one")
	}
}

func TestClampTemperature(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.7, 0.7},
		{0.9, 0.9},
		{1.5, 0.9},
	}
	for _, c := range cases {
		if got := ClampTemperature(c.in); got != c.want {
			t.Fatalf("ClampTemperature(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFinalPercentage(t *testing.T) {
	// 5 of 9 words is 55.6% after one-decimal rounding.
	if got := FinalPercentage(5, 9); got != 55.6 {
		t.Fatalf("FinalPercentage(5, 9) = %v, want 55.6", got)
	}
	if got := FinalPercentage(9, 9); got != 100.0 {
		t.Fatalf("FinalPercentage(9, 9) = %v, want 100", got)
	}
	if got := FinalPercentage(3, 0); got != 0 {
		t.Fatalf("zero original should yield 0, got %v", got)
	}
}
