package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/safeher/safeher/server/auth"
	"github.com/safeher/safeher/server/models"
)

func TestGuardAuthenticate(t *testing.T) {
	models.InitializeTestDb()

	tokenAuth := auth.NewTokenAuthority("test-secret", time.Hour)
	guard := NewGuard(tokenAuth)

	user := &models.User{
		Name:     "Ama Owusu",
		Email:    "guard@example.com",
		Phone:    "+15555550100",
		Password: "super-secret",
	}
	assert.Nil(t, models.CreateUser(user))

	token, err := tokenAuth.IssueToken(user.ID)
	assert.Nil(t, err)

	t.Run("resolves a valid bearer token to its user", func(t *testing.T) {
		resolved, err := guard.Authenticate("Bearer " + token)
		assert.Nil(t, err)
		assert.Equal(t, user.ID, resolved.ID)
		assert.Empty(t, resolved.Password, "Password must never be loaded on auth lookups")
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		_, err := guard.Authenticate("")
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("rejects a header without the bearer prefix", func(t *testing.T) {
		_, err := guard.Authenticate(token)
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		_, err := guard.Authenticate("Bearer garbage")
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		expired, err := auth.NewTokenAuthority("test-secret", -time.Minute).IssueToken(user.ID)
		assert.Nil(t, err)

		_, err = guard.Authenticate("Bearer " + expired)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
	})

	t.Run("rejects a token for a deleted user", func(t *testing.T) {
		ghost := &models.User{
			Name:     "Ghost",
			Email:    "ghost@example.com",
			Phone:    "+15555550101",
			Password: "super-secret",
		}
		assert.Nil(t, models.CreateUser(ghost))

		ghostToken, err := tokenAuth.IssueToken(ghost.ID)
		assert.Nil(t, err)

		models.InitializeTestDb() // wipe the store

		_, err = guard.Authenticate("Bearer " + ghostToken)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
