package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollapse(t *testing.T) {
	cases := map[string]string{
		"  hello   world ":                 "hello world",
		"line one\n\t\tline two\n":         "line one line two",
		"":                                 "",
		"non breaking  space": "non breaking space",
	}
	for input, expected := range cases {
		require.Equal(t, expected, Collapse(input), input)
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "eartraining", NormalizeName("Ear-training"))
	require.Equal(t, "eartraining", NormalizeName(" ear training "))
	require.Equal(t, "lecture", NormalizeName("LECTURE"))
}
