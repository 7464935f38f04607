package usecases

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText_EmptyInput(t *testing.T) {
	if chunks := SplitText("", 100); len(chunks) != 0 {
		t.Errorf("empty text should produce no chunks, got %d", len(chunks))
	}
	if chunks := SplitText("   \n\t ", 100); len(chunks) != 0 {
		t.Errorf("whitespace text should produce no chunks, got %d", len(chunks))
	}
}

func TestSplitText_ShortTextIsOneTrimmedChunk(t *testing.T) {
	text := "  Hello there.  General   Kenobi!\n"
	chunks := SplitText(text, 100)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != strings.TrimSpace(text) {
		t.Errorf("expected trimmed text, got %q", chunks[0])
	}
}

func TestSplitText_PrefersSentenceBoundaries(t *testing.T) {
	text := "One two three. Four five six! Seven eight nine?"
	chunks := SplitText(text, 30)

	want := []string{"One two three. Four five six!", "Seven eight nine?"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSplitText_LongSentenceFallsBackToWords(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa."
	chunks := SplitText(text, 20)

	if len(chunks) < 3 {
		t.Fatalf("expected the sentence to be split into several chunks, got %q", chunks)
	}
	for _, c := range chunks {
		if utf8.RuneCountInString(c) > 20 {
			t.Errorf("chunk exceeds limit: %q", c)
		}
	}
}

func TestSplitText_OversizedWordPassesThrough(t *testing.T) {
	long := strings.Repeat("x", 50)
	text := "short words " + long + " after"
	chunks := SplitText(text, 20)

	found := false
	for _, c := range chunks {
		if c == long {
			found = true
		}
		if c == "" {
			t.Error("empty chunk emitted")
		}
	}
	if !found {
		t.Errorf("oversized word should be its own untouched chunk, got %q", chunks)
	}
}

func TestSplitText_PreservesAllWordsInOrder(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("Sentence number ")
		sb.WriteString(strings.Repeat("w", i%13+1))
		if i%4 == 0 {
			sb.WriteString("!\n\n")
		} else {
			sb.WriteString(".  ")
		}
	}
	text := sb.String()

	for _, limit := range []int{15, 40, 100, 999} {
		chunks := SplitText(text, limit)
		for _, c := range chunks {
			if c == "" {
				t.Fatalf("limit %d: empty chunk", limit)
			}
			if utf8.RuneCountInString(c) > limit {
				t.Fatalf("limit %d: chunk too long: %q", limit, c)
			}
		}
		rejoined := strings.Fields(strings.Join(chunks, " "))
		original := strings.Fields(text)
		if strings.Join(rejoined, " ") != strings.Join(original, " ") {
			t.Fatalf("limit %d: words were lost or reordered", limit)
		}
	}
}

func TestSplitText_CountsCharactersNotBytes(t *testing.T) {
	text := "héllo wörld. ünïcode tëxt."
	chunks := SplitText(text, utf8.RuneCountInString(text))
	if len(chunks) != 1 {
		t.Errorf("text at exactly the limit should be one chunk, got %d", len(chunks))
	}
}
