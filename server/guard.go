package server

import (
	"errors"
	"strings"

	"github.com/safeher/safeher/server/auth"
	"github.com/safeher/safeher/server/models"
	"gorm.io/gorm"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrUserNotFound = errors.New("user not found")
)

// Guard resolves a raw Authorization header to the acting user before
// any protected handler runs. Every failure reason maps to exactly one
// sentinel - nothing is swallowed on the way up.
type Guard struct {
	tokenAuthority *auth.TokenAuthority
}

func NewGuard(tokenAuthority *auth.TokenAuthority) *Guard {
	return &Guard{tokenAuthority: tokenAuthority}
}

func (g *Guard) Authenticate(authHeaderValue string) (*models.User, error) {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return nil, ErrNoToken
	}

	tokenClaims, err := g.tokenAuthority.VerifyToken(authHeaderList[1])
	if err != nil {
		return nil, err
	}

	// validate that the user account still exists
	user, err := models.FindUserBy("id", tokenClaims.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}
