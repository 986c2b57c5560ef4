package browserctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUrlMatches_EmptyPatternAlwaysMatches(t *testing.T) {
	assert.True(t, urlMatches("https://ex.test/anything", ""))
}

func TestUrlMatches_ExactNoWildcard(t *testing.T) {
	assert.True(t, urlMatches("https://ex.test/a", "https://ex.test/a"))
	assert.False(t, urlMatches("https://ex.test/a", "https://ex.test/b"))
}

func TestContainsGlob_PrefixSuffixWildcard(t *testing.T) {
	assert.True(t, containsGlob("https://ex.test/checkout/success", "https://ex.test/checkout/*"))
	assert.True(t, containsGlob("https://ex.test/checkout/success", "*/success"))
	assert.False(t, containsGlob("https://ex.test/cart", "https://ex.test/checkout/*"))
}

func TestContainsGlob_WildcardRequiresMinimumLength(t *testing.T) {
	assert.False(t, containsGlob("ab", "abcd*wxyz"))
}

func TestCssToXPath_PrefixesMarker(t *testing.T) {
	assert.Equal(t, "css:#submit", cssToXPath("#submit"))
}

func TestNameFilter_EmptyNameYieldsNoPredicate(t *testing.T) {
	assert.Equal(t, "", nameFilter("", true))
}

func TestNameFilter_ExactWrapsEquality(t *testing.T) {
	f := nameFilter("Sign in", true)
	assert.Contains(t, f, "normalize-space(.)=")
	assert.Contains(t, f, `"Sign in"`)
}

func TestNameFilter_InexactWrapsContains(t *testing.T) {
	f := nameFilter("Sign", false)
	assert.Contains(t, f, "contains(normalize-space(.)")
}

func TestTextCompare_ExactVsContains(t *testing.T) {
	assert.Equal(t, `.=` + `"x"`, textCompare(".", "x", true))
	assert.Equal(t, `contains(., "x")`, textCompare(".", "x", false))
}

func TestJsString_EscapesQuotesAndSpecialChars(t *testing.T) {
	assert.Equal(t, `"it\"s \"quoted\""`, jsString(`it"s "quoted"`))
}

func TestIndexByte(t *testing.T) {
	assert.Equal(t, 3, indexByte("abc*def", '*'))
	assert.Equal(t, -1, indexByte("abcdef", '*'))
}
