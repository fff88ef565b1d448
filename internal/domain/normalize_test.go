package domain

import "testing"

func TestNormalizeAnswer(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Hello   World ", "hello world"},
		{"PARIS", "paris"},
		{"ＡＢＣ", "abc"},
		{"ÉCOLE", "école"},
		{"МОСКВА", "москва"},
		{"\tline\nbreak", "line break"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeAnswer(tc.in); got != tc.want {
			t.Fatalf("NormalizeAnswer(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAnswersMatch(t *testing.T) {
	if !AnswersMatch(" 4 ", "4") {
		t.Fatalf("expected whitespace-insensitive match")
	}
	if !AnswersMatch("new   york", "New York") {
		t.Fatalf("expected case-insensitive match")
	}
	if AnswersMatch("5", "4") {
		t.Fatalf("expected mismatch")
	}
}
