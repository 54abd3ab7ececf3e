package app

import (
	"strings"
	"testing"
)

func TestEscapeMarkdownNeutralizesBlockSyntax(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"# heading", "\\# heading"},
		{"- item", "\\- item"},
		{"1. item", "\\1. item"},
		{"> quote", "\\> quote"},
		{"plain text", "plain text"},
		{"  - indented", "  \\- indented"},
	}
	for _, tc := range cases {
		if got := escapeMarkdown(tc.in); got != tc.want {
			t.Fatalf("escapeMarkdown(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeMarkdownBackticks(t *testing.T) {
	got := escapeMarkdown("run `ls` now")
	if !strings.Contains(got, "\\`ls\\`") {
		t.Fatalf("expected escaped backticks, got %q", got)
	}
}

func TestIsNumberedList(t *testing.T) {
	cases := map[string]bool{
		"1. one":    true,
		"42. item":  true,
		". no":      false,
		"1.no":      false,
		"a. letter": false,
	}
	for in, want := range cases {
		if got := isNumberedList(in); got != want {
			t.Fatalf("isNumberedList(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRenderMarkdownFallsBackOnEmpty(t *testing.T) {
	if out := renderMarkdown("", 40); out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}
}
