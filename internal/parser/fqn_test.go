package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOperatorName(t *testing.T) {
	cases := map[string]string{
		"+":               "operator+",
		"<<":              "operator<<",
		"()":              "operator()",
		"[]":              "operator[]",
		"operator +":      "operator+",
		"operator<<":      "operator<<",
		"operator new":    "operator new",
		"operator new[]":  "operator new[]",
		"operator delete": "operator delete",
		"Vec::operator+":  "Vec::operator+",
		"plainName":       "plainName",
	}
	for input, want := range cases {
		assert.Equal(t, want, normalizeOperatorName(input), "input %q", input)
	}
}

func TestStripTemplateArgs(t *testing.T) {
	assert.Equal(t, "make_pair", stripTemplateArgs("make_pair<int,int>"))
	assert.Equal(t, "std::vector", stripTemplateArgs("std::vector<T>"))
	assert.Equal(t, "plain", stripTemplateArgs("plain"))
	assert.Equal(t, "a < b", stripTemplateArgs("a < b"))
}

func TestNormalizeTypeSpacing(t *testing.T) {
	cases := map[string]string{
		"const   Vec &": "const Vec&",
		"char * []":     "char*[]",
		"int *":         "int*",
		"unsigned  int": "unsigned int",
		"T [ ]":         "T[]",
	}
	for input, want := range cases {
		assert.Equal(t, want, normalizeTypeSpacing(input), "input %q", input)
	}
}

func TestSplitNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitNonEmpty("a::b", "::"))
	assert.Equal(t, []string{"a", "b"}, splitNonEmpty("::a::b", "::"))
	assert.Empty(t, splitNonEmpty("", "::"))
}
