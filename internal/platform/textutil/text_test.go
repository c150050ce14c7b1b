package textutil

import (
	"slices"
	"testing"
	"unicode/utf8"
)

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{" Forex ", "crypto", "forex", "", "CFD"}, true)
	if want := []string{"forex", "crypto", "cfd"}; !slices.Equal(got, want) {
		t.Fatalf("NormalizeList fold = %v, want %v", got, want)
	}
	got = NormalizeList([]string{"Low fees", "Low fees", " Fast payouts "}, false)
	if want := []string{"Low fees", "Fast payouts"}; !slices.Equal(got, want) {
		t.Fatalf("NormalizeList = %v, want %v", got, want)
	}
	if NormalizeList([]string{" ", ""}, false) != nil {
		t.Fatalf("expected nil for blank input")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("  short\n text ", 40); got != "short text" {
		t.Fatalf("expected collapsed text, got %q", got)
	}
	got := Truncate("The quick brown fox jumps over the lazy dog", 20)
	if got != "The quick brown fox…" {
		t.Fatalf("unexpected truncation %q", got)
	}
	got = Truncate("ユーザーレビューとランキング", 5)
	if utf8.RuneCountInString(got) != 5 {
		t.Fatalf("expected 5 runes, got %q", got)
	}
}
