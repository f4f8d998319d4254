package nlm

import (
	"reflect"
	"testing"
)

func TestIsUUID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0d9556e1-9e1a-4cfd-966c-aba21ab36d7c", true},
		{"0D9556E1-9E1A-4CFD-966C-ABA21AB36D7C", true},
		{"not-a-uuid", false},
		{"", false},
		{"0d9556e19e1a4cfd966caba21ab36d7c", false},
		{"0d9556e1-9e1a-4cfd-966c-aba21ab36d7cX", false},
	}
	for _, tt := range tests {
		if got := IsUUID(tt.in); got != tt.want {
			t.Errorf("IsUUID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsImageRef(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://lh3.googleusercontent.com/abc", true},
		{"data:image/png;base64,AAAA", true},
		{"https://example.com/image.png", false},
		{"data:text/plain;base64,AAAA", false},
	}
	for _, tt := range tests {
		if got := IsImageRef(tt.in); got != tt.want {
			t.Errorf("IsImageRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFindString(t *testing.T) {
	const id = "2b4e5f60-1111-4222-8333-944455566677"
	tree := []any{"title", []any{float64(1), []any{id, "trailing"}}, nil}

	got, ok := FindString(tree, IsUUID)
	if !ok || got != id {
		t.Errorf("FindString = %q/%v, want %q", got, ok, id)
	}

	if _, ok := FindString([]any{"a", "b"}, IsUUID); ok {
		t.Error("expected no match")
	}
}

func TestCollectStrings(t *testing.T) {
	tree := []any{
		"first",
		[]any{" padded ", ""},
		map[string]any{"k": float64(3)},
		"last",
	}
	got := CollectStrings(tree, WalkOptions{})
	want := []string{"first", "padded", "last"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectStrings = %v, want %v", got, want)
	}
}

func TestWalkSuppression(t *testing.T) {
	t.Run("timestamp spans hide children", func(t *testing.T) {
		tree := []any{
			"keep",
			[]any{float64(4000), float64(5000), []any{"transcript text"}},
		}
		got := CollectStrings(tree, WalkOptions{SkipTimestampSpans: true})
		want := []string{"keep"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("spans visited without the option", func(t *testing.T) {
		tree := []any{[]any{float64(1), float64(2), []any{"inside"}}}
		got := CollectStrings(tree, WalkOptions{})
		want := []string{"inside"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("36-char leaves dropped", func(t *testing.T) {
		tree := []any{"short", "123456789012345678901234567890123456"}
		got := CollectStrings(tree, WalkOptions{SkipUUIDStrings: true})
		want := []string{"short"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestIsTimestampSpan(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want bool
	}{
		{"two numbers", []any{float64(1), float64(2)}, true},
		{"leading null", []any{nil, float64(1), float64(2)}, true},
		{"strings", []any{"a", "b"}, false},
		{"single number", []any{float64(1)}, false},
		{"null then string", []any{nil, "x", float64(2)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTimestampSpan(tt.in); got != tt.want {
				t.Errorf("isTimestampSpan(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
