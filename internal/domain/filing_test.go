package domain

import "testing"

func TestImpactLevelRank(t *testing.T) {
	t.Parallel()

	order := []ImpactLevel{ImpactNone, ImpactLow, ImpactMedium, ImpactHigh}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("expected %s < %s", order[i-1], order[i])
		}
	}

	if ImpactLevel("").Rank() != 0 {
		t.Fatal("empty level must rank as None")
	}
	if ImpactLevel("Severe").Rank() != 0 {
		t.Fatal("unknown level must rank as None")
	}
}
