package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// maxStripPasses bounds the fixpoint loop in LabelStripper.Strip.
const maxStripPasses = 8

// LabelRule removes every match of Pattern, substituting Replacement.
type LabelRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// LabelStripper removes leaked label text (e.g. "Review Date: ...") from
// extracted values. Rules are applied in order, repeatedly, until the text
// stops changing, so stripping already-stripped text is a no-op.
type LabelStripper struct {
	rules []LabelRule
}

// NewLabelStripper compiles the given (pattern, replacement) pairs.
func NewLabelStripper(patterns [][2]string) (*LabelStripper, error) {
	rules := make([]LabelRule, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p[0])
		if err != nil {
			return nil, fmt.Errorf("labels: compile %q: %w", p[0], err)
		}
		rules = append(rules, LabelRule{Pattern: re, Replacement: p[1]})
	}
	return &LabelStripper{rules: rules}, nil
}

// Strip applies every rule until a fixpoint and trims surrounding whitespace.
func (s *LabelStripper) Strip(text string) string {
	if s == nil {
		return strings.TrimSpace(text)
	}

	current := strings.TrimSpace(text)
	for pass := 0; pass < maxStripPasses; pass++ {
		next := current
		for _, r := range s.rules {
			next = r.Pattern.ReplaceAllString(next, r.Replacement)
		}
		next = strings.TrimSpace(next)
		if next == current {
			break
		}
		current = next
	}
	return current
}

// CollapseSpace trims s and collapses internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
