package signer

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const nonceBytes = 24

// TokenSigner creates URL-safe random tokens bound to a scope (an attendance
// session) with an HMAC-SHA256 signature, so a token minted for one session
// cannot be replayed against another.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner constructs a signer with the provided secret.
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// Generate returns "<nonce>.<signature>" for scope. The nonce comes from crypto/rand.
func (s *TokenSigner) Generate(scope string) (string, error) {
	if scope == "" {
		return "", fmt.Errorf("scope required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random nonce: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(buf)
	return nonce + "." + s.sign(scope, nonce), nil
}

// Verify checks the token shape and signature for scope. It does not check freshness.
func (s *TokenSigner) Verify(scope, token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid token format")
	}
	if _, err := base64.RawURLEncoding.DecodeString(parts[0]); err != nil {
		return fmt.Errorf("decode nonce: %w", err)
	}
	expected := s.sign(scope, parts[0])
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return fmt.Errorf("invalid token signature")
	}
	return nil
}

func (s *TokenSigner) sign(scope, nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(scope + "|" + nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
