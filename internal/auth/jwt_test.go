package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadefinds/comms/internal/models"
)

func TestGenerateAndParseToken(t *testing.T) {
	user := &models.User{
		ID:    uuid.New(),
		Email: "seller@example.com",
		Role:  models.RoleSeller,
	}

	signed, err := GenerateToken(user, "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(signed, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, models.RoleSeller, claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@b.c", Role: models.RoleMember}

	signed, err := GenerateToken(user, "secret-one", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(signed, "secret-two")
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@b.c", Role: models.RoleMember}

	signed, err := GenerateToken(user, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(signed, "secret")
	assert.Error(t, err)
}
