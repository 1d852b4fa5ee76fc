package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Token(t *testing.T) {
	s := NewStoreWith(keyring.NewArrayKeyring(nil))

	_, err := s.Token()
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.SetToken("abc123"))
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	require.NoError(t, s.ClearToken())
	_, err = s.Token()
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, s.ClearToken(), "clearing twice is fine")
}
