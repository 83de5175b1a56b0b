package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "japa/pkg/domain-errors"
)

func TestValidateToken(t *testing.T) {
	validator := NewValidator("test-signing-key")

	t.Run("round trips subject and display name", func(t *testing.T) {
		signed, err := validator.Sign("profile-7", "Arjuna", time.Hour)
		require.NoError(t, err)

		claims, err := validator.ValidateToken(signed)
		require.NoError(t, err)
		assert.Equal(t, "profile-7", claims.Subject)
		assert.Equal(t, "Arjuna", claims.DisplayName)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		signed, err := validator.Sign("profile-7", "", -time.Minute)
		require.NoError(t, err)

		_, err = validator.ValidateToken(signed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		other := NewValidator("different-key")
		signed, err := other.Sign("profile-7", "", time.Hour)
		require.NoError(t, err)

		_, err = validator.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("rejects a token without a subject", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := raw.SignedString([]byte("test-signing-key"))
		require.NoError(t, err)

		_, err = validator.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("rejects the none algorithm", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "profile-7"},
		})
		signed, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = validator.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := validator.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}
