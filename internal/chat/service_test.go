package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIPIsSaltedAndStable(t *testing.T) {
	a := &Service{ipHashSalt: "salt-a"}
	b := &Service{ipHashSalt: "salt-b"}

	h1 := a.hashIP("203.0.113.7")
	h2 := a.hashIP("203.0.113.7")
	h3 := b.hashIP("203.0.113.7")

	require.NotNil(t, h1)
	assert.Equal(t, *h1, *h2, "same salt and IP hash alike")
	assert.NotEqual(t, *h1, *h3, "different salt changes the digest")
	assert.Len(t, *h1, 64)
	assert.NotContains(t, *h1, "203.0.113.7")
}

func TestHashIPEmpty(t *testing.T) {
	s := &Service{ipHashSalt: "salt"}
	assert.Nil(t, s.hashIP(""))
}

func TestTrimUserAgent(t *testing.T) {
	assert.Nil(t, trimUserAgent(""))

	short := trimUserAgent("Mozilla/5.0")
	require.NotNil(t, short)
	assert.Equal(t, "Mozilla/5.0", *short)

	long := trimUserAgent(string(make([]byte, 2000)))
	require.NotNil(t, long)
	assert.Len(t, *long, maxUserAgentLen)
}
