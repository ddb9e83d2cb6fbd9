package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("ten_a1b2c3d4e5f60718"))
	assert.True(t, IsValidID("dlv_0123456789abcdef01234567"))
	assert.False(t, IsValidID("no-prefix"))
	assert.False(t, IsValidID("ten_"))
	assert.False(t, IsValidID("TEN_ABCDEF12"))
	assert.False(t, IsValidID(""))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("host@example.com"))
	assert.False(t, IsValidEmail("not-an-email"))
	assert.False(t, IsValidEmail("a@b"))
	assert.False(t, IsValidEmail(strings.Repeat("a", 320)+"@example.com"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
}
