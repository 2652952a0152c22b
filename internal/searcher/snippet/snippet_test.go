package snippet

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		want    string
	}{
		{"empty", "", 5, ""},
		{"shorter", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"longer", "abcdef", 5, "abcde..."},
		{"multibyte kept whole", "гравитация", 4, "грав..."},
		{"emoji", "😀😀😀", 2, "😀😀..."},
		{"default length", strings.Repeat("я", 201), 0, strings.Repeat("я", 200) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.content, tt.max); got != tt.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.content, tt.max, got, tt.want)
			}
		})
	}
}

func TestExcerptBound(t *testing.T) {
	content := strings.Repeat("日本語のテキスト ", 100)
	got := Excerpt(content, DefaultLength)
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, Ellipsis) {
		t.Errorf("truncated excerpt %q lacks %q", got, Ellipsis)
	}
	if n := utf8.RuneCountInString(got); n != DefaultLength+len(Ellipsis) {
		t.Errorf("excerpt has %d code points, want %d", n, DefaultLength+len(Ellipsis))
	}
}
