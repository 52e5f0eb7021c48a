package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelStripper(t *testing.T) {
	s, err := NewLabelStripper([][2]string{
		{`(?i)Review Date.*`, ""},
		{`(?im)^[ \t]*Agtron:.*$`, ""},
		{`(?im)^[ \t]*Notes:?`, ""},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing leaked label", "$18.00/12 ounces Review Date: March 2024", "$18.00/12 ounces"},
		{"case insensitive", "$18.00 review date March", "$18.00"},
		{"prefix label to end of line", "Agtron: 58/76\nBright and juicy.", "Bright and juicy."},
		{"label only removal", "Notes: Produced by smallholders.", "Produced by smallholders."},
		{"repeated labels reach fixpoint", "Notes: Notes: Washed.", "Washed."},
		{"untouched", "Sweet, tart, cocoa-toned.", "Sweet, tart, cocoa-toned."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Strip(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, s.Strip(got), "stripping must be idempotent")
		})
	}
}

func TestLabelStripperRejectsBadPattern(t *testing.T) {
	_, err := NewLabelStripper([][2]string{{`(`, ""}})
	assert.Error(t, err)
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseSpace("  a \n\t b   c "))
	assert.Equal(t, "", CollapseSpace(" \n "))
}
