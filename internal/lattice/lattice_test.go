package lattice

import (
	"strings"
	"testing"
)

func TestCatalogIsWellFormed(t *testing.T) {
	seenSymbols := make(map[string]bool)
	for _, model := range All() {
		if model.Name == "" || model.Symbol == "" || model.Category == "" || model.Founder == "" || model.Brief == "" {
			t.Fatalf("incomplete model: %+v", model)
		}
		if len([]rune(model.Symbol)) != 2 {
			t.Fatalf("symbol must be two characters: %+v", model)
		}
		if seenSymbols[model.Symbol] {
			t.Fatalf("duplicate symbol %q", model.Symbol)
		}
		seenSymbols[model.Symbol] = true
	}
}

func TestFindExact(t *testing.T) {
	model, found := Find("Inversion")
	if !found || model.Symbol != "Iv" {
		t.Fatalf("Find(Inversion) = %+v, %v", model, found)
	}
	if _, found := Find("inversion"); !found {
		t.Fatal("Find must be case insensitive")
	}
}

func TestFindContainment(t *testing.T) {
	model, found := Find("Incentive-Caused Bias (Incentives)")
	if !found || model.Name != "Incentives" {
		t.Fatalf("containment lookup failed: %+v, %v", model, found)
	}
	if _, found := Find("Astrology"); found {
		t.Fatal("unknown name must not match")
	}
}

func TestFilter(t *testing.T) {
	all := Filter("", "")
	if len(all) != len(All()) {
		t.Fatalf("empty filter must return all models, got %d", len(all))
	}

	decision := Filter("", "Decision")
	if len(decision) == 0 {
		t.Fatal("expected Decision models")
	}
	for _, model := range decision {
		if model.Category != "Decision" {
			t.Fatalf("wrong category in result: %+v", model)
		}
	}

	inverted := Filter("invert", "")
	if len(inverted) == 0 {
		t.Fatal("expected a match for 'invert'")
	}
	for _, model := range inverted {
		haystack := strings.ToLower(model.Name + " " + model.Brief)
		if !strings.Contains(haystack, "invert") {
			t.Fatalf("unexpected match: %+v", model)
		}
	}
}

func TestCategories(t *testing.T) {
	categories := Categories()
	if len(categories) == 0 {
		t.Fatal("expected categories")
	}
	seen := make(map[string]bool)
	for _, category := range categories {
		if seen[category] {
			t.Fatalf("duplicate category %q", category)
		}
		seen[category] = true
	}
	if !seen["Psychology"] || !seen["Decision"] {
		t.Fatalf("expected core categories, got %v", categories)
	}
}
