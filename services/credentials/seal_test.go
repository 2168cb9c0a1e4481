package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealRoundTrip(t *testing.T) {
	s := newSealer("secret-a")

	token, err := s.Seal("APIKEY123")
	require.NoError(t, err)
	assert.NotContains(t, token, "APIKEY123")

	plain, err := s.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "APIKEY123", plain)
}

func TestSealTokensDiffer(t *testing.T) {
	s := newSealer("secret-a")

	a, err := s.Seal("APIKEY123")
	require.NoError(t, err)
	b, err := s.Seal("APIKEY123")
	require.NoError(t, err)

	// Random nonces make identical plaintexts look unrelated at rest
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsWrongSecret(t *testing.T) {
	token, err := newSealer("secret-a").Seal("APIKEY123")
	require.NoError(t, err)

	_, err = newSealer("secret-b").Open(token)
	assert.Error(t, err)
}

func TestOpenRejectsGarbage(t *testing.T) {
	s := newSealer("secret-a")

	_, err := s.Open("not base64 %%%")
	assert.Error(t, err)

	_, err = s.Open("c2hvcnQ=")
	assert.Error(t, err)
}
