package utils

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "periods",
			text: "First sentence. Second sentence. Third.",
			want: []string{"First sentence.", "Second sentence.", "Third."},
		},
		{
			name: "mixed punctuation",
			text: "Really? Yes! Absolutely.",
			want: []string{"Really?", "Yes!", "Absolutely."},
		},
		{
			name: "trailing fragment without punctuation",
			text: "Complete sentence. dangling tail",
			want: []string{"Complete sentence.", "dangling tail"},
		},
		{
			name: "no punctuation at all",
			text: "just a stream of words",
			want: []string{"just a stream of words"},
		},
		{
			name: "empty",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitTextSingleChunk(t *testing.T) {
	// Three sentences comfortably under the chunk size collapse into one
	// chunk equal to the input.
	text := "First sentence here. Second sentence follows. Third closes it."
	got := SplitText(text, 1500, 200)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0] != text {
		t.Errorf("chunk = %q, want the full text", got[0])
	}
}

func TestSplitTextEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		if got := SplitText(text, 1500, 200); len(got) != 0 {
			t.Errorf("SplitText(%q) = %v, want empty", text, got)
		}
	}
}

func TestSplitTextOverlapSeeding(t *testing.T) {
	text := "Alpha beta gamma delta. Epsilon zeta eta theta. Iota kappa lambda mu."
	want := []string{
		"Alpha beta gamma delta.",
		"gamma delta. Epsilon zeta eta theta.",
		"eta theta. Iota kappa lambda mu.",
	}

	// overlap 10 seeds each new chunk with the prior chunk's last two words
	got := SplitText(text, 40, 10)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitText() = %#v, want %#v", got, want)
	}
}

func TestSplitTextOversizedSentence(t *testing.T) {
	long := "This is one very long unbroken sentence."
	text := "Short one. " + long
	got := SplitText(text, 10, 0)

	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[1] != long {
		t.Errorf("oversized sentence must survive intact, got %q", got[1])
	}
	if utf8.RuneCountInString(got[1]) <= 10 {
		t.Errorf("expected the oversized chunk to exceed the chunk size")
	}
}

func TestSplitTextDeterministic(t *testing.T) {
	// A ~10k character document chunks identically on every run.
	sentence := "The archive keeps every ledger entry from the first press run onward. "
	text := strings.TrimSpace(strings.Repeat(sentence, 150))
	if utf8.RuneCountInString(text) < 10000 {
		t.Fatalf("fixture too small: %d runes", utf8.RuneCountInString(text))
	}

	first := SplitText(text, 1500, 200)
	second := SplitText(text, 1500, 200)

	if len(first) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("chunking is not deterministic")
	}
	for i, c := range first {
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello", 1},
		{"hello world", 2},
		{"  spaced   out\tthings\n", 3},
	}
	for _, tt := range tests {
		if got := CountWords(tt.text); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 0},
		{4, 3},
		{10, 7},
		{100, 75},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.words); got != tt.want {
			t.Errorf("EstimateTokens(%d) = %d, want %d", tt.words, got, tt.want)
		}
	}
}
