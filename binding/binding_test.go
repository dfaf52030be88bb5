package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	data := map[string]any{
		"brand": map[string]any{"name": "Acme", "tags": []any{"fast", "cheap"}},
		"plain": map[string]string{"city": "Hangzhou"},
		"year":  2026,
	}
	cases := map[string]string{
		"Welcome to ${brand.name}":          "Welcome to Acme",
		"${brand.tags[1]} and ${ year }":     "cheap and 2026",
		"${plain.city}":                      "Hangzhou",
		"${brand.missing|Untitled}":          "Untitled",
		"${brand.name|Untitled}":             "Acme",
		"${brand.missing}":                   "${brand.missing}",
		"${brand.tags[9]}":                   "${brand.tags[9]}",
		"no placeholders":                    "no placeholders",
		"${}":                                "${}",
	}
	for in, want := range cases {
		assert.Equal(t, want, Interpolate(in, data), in)
	}
}

func TestInterpolateWithoutData(t *testing.T) {
	assert.Equal(t, "Hi ${user.name}", Interpolate("Hi ${user.name}", nil))
	assert.Equal(t, "Hi guest", Interpolate("Hi ${user.name|guest}", nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a.b", "c[0]", "a.b"}, Placeholders("${a.b} ${c[0]|x} ${a.b}"))
	assert.Empty(t, Placeholders("plain"))
}
