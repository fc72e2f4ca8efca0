package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	for _, key := range []string{testKey, "just a passphrase"} {
		s, err := NewSealer(key)
		require.NoError(t, err)

		sealed, err := s.Seal("7~abcdef")
		require.NoError(t, err)
		assert.NotContains(t, sealed, "abcdef")

		again, err := s.Seal("7~abcdef")
		require.NoError(t, err)
		assert.NotEqual(t, sealed, again, "nonce must differ")

		plain, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "7~abcdef", plain)
	}
}

func TestSealerErrors(t *testing.T) {
	_, err := NewSealer("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	s, err := NewSealer(testKey)
	require.NoError(t, err)

	empty, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.Open("not base64!")
	assert.ErrorIs(t, err, ErrOpenFailed)
	_, err = s.Open("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrOpenFailed)

	sealed, err := s.Seal("value")
	require.NoError(t, err)
	tampered := strings.ToUpper(sealed[:4]) + sealed[4:]
	if tampered != sealed {
		_, err = s.Open(tampered)
		assert.ErrorIs(t, err, ErrOpenFailed)
	}
}
