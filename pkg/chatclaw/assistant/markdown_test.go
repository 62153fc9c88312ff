package assistant

import (
	"strings"
	"testing"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"dot and bang", "Done. Really!", "Done\\. Really\\!"},
		{"brackets and parens", "[link](url)", "\\[link\\]\\(url\\)"},
		{"dash list", "- item", "\\- item"},
		{"hash and plus", "#1 + #2", "\\#1 \\+ \\#2"},
		{"pipe braces", "a|{b}", "a\\|\\{b\\}"},
		{"tilde and gt", "~5 > 3", "\\~5 \\> 3"},
		{"equals", "a=b", "a\\=b"},
		{"emphasis preserved", "*bold* and _italic_", "*bold* and _italic_"},
		{"backslash doubled", `a\b`, `a\\b`},
		{"backslash before special", `a\.b`, `a\\\.b`},
		{"empty", "", ""},
		{"unicode untouched", "안녕하세요 🔍", "안녕하세요 🔍"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeMarkdownV2(tt.input)
			if got != tt.want {
				t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeMarkdownV2_AllSpecialsEscaped(t *testing.T) {
	got := EscapeMarkdownV2(markdownV2Special)

	for _, r := range markdownV2Special {
		if r == '*' || r == '_' {
			if strings.Contains(got, `\`+string(r)) {
				t.Errorf("emphasis character %q should not be escaped", r)
			}
			continue
		}
		if !strings.Contains(got, `\`+string(r)) {
			t.Errorf("special character %q not escaped in %q", r, got)
		}
	}
}

func TestEscapeMarkdownV2_NeverPanicsOnLargeInput(t *testing.T) {
	input := strings.Repeat(`\`, 2000) + strings.Repeat(".", 2000)
	got := EscapeMarkdownV2(input)

	if len(got) != 8000 {
		t.Errorf("expected 2000 doubled backslashes and 2000 escaped dots (8000 bytes), got %d", len(got))
	}
}
