package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeAnswer trims, collapses inner whitespace and case-folds text so that
// "  Hello   World" and "hello world" compare equal.
func NormalizeAnswer(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	// Casers are stateful, so one is built per call.
	return cases.Fold().String(s)
}

// AnswersMatch compares a submitted answer with the expected one after normalization.
func AnswersMatch(submitted, expected string) bool {
	return NormalizeAnswer(submitted) == NormalizeAnswer(expected)
}
