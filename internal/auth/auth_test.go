package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService("test-secret")

	token, err := svc.GenerateToken("PLR_1", "GME_1")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), token.Expiration, time.Minute)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "PLR_1", claims.PlayerID)
	assert.Equal(t, "GME_1", claims.GameID)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := NewService("secret-a").GenerateToken("PLR_1", "GME_1")
	require.NoError(t, err)

	_, err = NewService("secret-b").ValidateToken(token.Token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewService("test-secret")

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
