package signer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenSignerGenerateAndVerify(t *testing.T) {
	s := NewTokenSigner("secret")
	token, err := s.Generate("session-1")
	require.NoError(t, err)
	require.NotContains(t, token, "=")
	require.NoError(t, s.Verify("session-1", token))
}

func TestTokenSignerRejectsOtherScope(t *testing.T) {
	s := NewTokenSigner("secret")
	token, err := s.Generate("session-1")
	require.NoError(t, err)
	require.Error(t, s.Verify("session-2", token))
}

func TestTokenSignerRejectsTampering(t *testing.T) {
	s := NewTokenSigner("secret")
	token, err := s.Generate("session-1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 2)
	require.Error(t, s.Verify("session-1", parts[0]))
	require.Error(t, s.Verify("session-1", "AAAA."+parts[1]))
	require.Error(t, NewTokenSigner("other").Verify("session-1", token))
}

func TestTokenSignerRequiresSecretAndScope(t *testing.T) {
	_, err := NewTokenSigner("").Generate("session-1")
	require.Error(t, err)
	_, err = NewTokenSigner("secret").Generate("")
	require.Error(t, err)
}

func TestTokenSignerTokensAreUnique(t *testing.T) {
	s := NewTokenSigner("secret")
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		token, err := s.Generate("session-1")
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}
