package prefilter

import (
	"strings"
	"testing"
)

func TestThresholdsLookup(t *testing.T) {
	t.Parallel()

	th := NewThresholds(1500, map[string]int{"4": 200, "10-K": 4000})

	if got := th.MinChars("4"); got != 200 {
		t.Fatalf("form 4 threshold: expected 200, got %d", got)
	}
	if got := th.MinChars("10-K"); got != 4000 {
		t.Fatalf("form 10-K threshold: expected 4000, got %d", got)
	}
	if got := th.MinChars("S-1"); got != 1500 {
		t.Fatalf("unknown form should use default 1500, got %d", got)
	}
}

func TestThresholdsDefaultFallback(t *testing.T) {
	t.Parallel()

	th := NewThresholds(0, nil)
	if got := th.MinChars("8-K"); got != 1500 {
		t.Fatalf("expected package default 1500, got %d", got)
	}
}

func TestAcceptLength(t *testing.T) {
	t.Parallel()

	f := New(nil)

	if f.Accept("", 10) {
		t.Fatal("empty text must be rejected")
	}
	if f.Accept(strings.Repeat("a", 9), 10) {
		t.Fatal("text below minimum must be rejected")
	}
	if !f.Accept(strings.Repeat("a", 10), 10) {
		t.Fatal("text at minimum must be accepted")
	}
	if !f.Accept(strings.Repeat("a", 11), 10) {
		t.Fatal("text above minimum must be accepted")
	}
}

func TestAcceptBoilerplate(t *testing.T) {
	t.Parallel()

	f := New([]string{"forward-looking statements"})

	long := strings.Repeat("substantive filing content ", 200)
	if !f.Accept(long, 100) {
		t.Fatal("clean text must be accepted")
	}

	tainted := long + " This report contains Forward-Looking Statements."
	if f.Accept(tainted, 100) {
		t.Fatal("boilerplate must reject regardless of length (case-insensitive)")
	}
}

func TestHash(t *testing.T) {
	t.Parallel()

	h1 := Hash("some filing text")
	h2 := Hash("some filing text")
	h3 := Hash("other filing text")

	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(h1))
	}
	if h1 != h2 {
		t.Fatal("hash must be deterministic")
	}
	if h1 == h3 {
		t.Fatal("different text must hash differently")
	}
}
