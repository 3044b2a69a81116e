package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("alice", RoleReviewer)
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Reviewer)
	assert.Equal(t, RoleReviewer, claims.Role)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	tok, err := NewJWTManager("one", 1).GenerateToken("alice", RoleViewer)
	require.NoError(t, err)

	_, err = NewJWTManager("two", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", 0)
	tok, err := m.GenerateToken("alice", RoleViewer)
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.Error(t, err)
}

func TestGenerateValidatesInput(t *testing.T) {
	m := NewJWTManager("secret", 1)
	_, err := m.GenerateToken("", RoleViewer)
	assert.Error(t, err)
	_, err = m.GenerateToken("bob", "ADMIN")
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	a := GenerateRandomString(8)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, GenerateRandomString(8))
}
