package catalog

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FLUX.1 [pro]", "flux1pro"},
		{"FLUX.1 Pro", "flux1pro"},
		{"Qwen-2.5 72B Instruct", "qwen2572binstruct"},
		{"  llama 3.1  ", "llama31"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "flux1pro", "flux1pro", true},
		{"containment", "flux1prov11", "flux1pro", true},
		{"small edit distance", "flux1pro", "flux1pr0", true},
		{"distinct models", "flux1pro", "stablediffusionxl", false},
		{"empty never matches", "", "flux1pro", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultSimilarity(tt.a, tt.b); got != tt.want {
				t.Fatalf("DefaultSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"flux1pro", "flux1pr0", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
