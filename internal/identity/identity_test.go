package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://X.test/listing/42?ref=abc", "https://x.test/listing/42"},
		{"https://x.test/listing/42/", "https://x.test/listing/42"},
		{"https://x.test/listing/42#photos", "https://x.test/listing/42"},
		{"https://x.test/listing/42/?a=1#b", "https://x.test/listing/42"},
		{"  https://x.test/a  ", "https://x.test/a"},
		{"https://x.test/a//", "https://x.test/a/"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestURL_StableAcrossVariants(t *testing.T) {
	base := URL("https://x.test/listing/42")
	variants := []string{
		"https://x.test/listing/42?ref=abc",
		"HTTPS://X.TEST/LISTING/42",
		"https://x.test/listing/42/",
		"https://x.test/listing/42#top",
		"https://X.test/Listing/42/?utm=1#frag",
	}
	for _, v := range variants {
		assert.Equal(t, base, URL(v), v)
	}
	assert.Len(t, base, Length)
	assert.NotEqual(t, base, URL("https://x.test/listing/43"))
}

func TestURL_KnownValue(t *testing.T) {
	// md5("")[:12]
	assert.Equal(t, "d41d8cd98f00", URL(""))
	assert.Equal(t, "d41d8cd98f00", URL("/?q=1"))
}

func TestTitle(t *testing.T) {
	a := Title("1969  Chevrolet\tCamaro SS ", "eBay Motors")
	b := Title("1969 chevrolet camaro ss", "EBAY MOTORS")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Title("1969 chevrolet camaro ss", "Kijiji"))
	assert.Len(t, Title("", ""), Length)
}
