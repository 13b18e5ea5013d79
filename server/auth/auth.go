package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLen     = 32
	pbkdf2SaltLen    = 16

	DefaultTokenTTL = 3600 * time.Second
)

// Verification failures form a closed set, so callers can map each
// reason to a response explicitly instead of suppressing everything.
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenInvalid   = errors.New("token is invalid")
)

type SafeHerTokenClaims struct {
	jwt.StandardClaims
}

// TokenAuthority issues & verifies bearer tokens signed with a
// server-held secret(HMAC-SHA256). Tokens embed the user id as the
// subject claim, so no session state is kept server side.
type TokenAuthority struct {
	secret   []byte
	tokenTTL time.Duration
}

func NewTokenAuthority(secret string, tokenTTL time.Duration) *TokenAuthority {
	if tokenTTL == 0 {
		tokenTTL = DefaultTokenTTL
	}

	return &TokenAuthority{secret: []byte(secret), tokenTTL: tokenTTL}
}

func (ta *TokenAuthority) IssueToken(userID uint) (string, error) {
	now := time.Now()
	claims := SafeHerTokenClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(userID),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ta.tokenTTL).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ta.secret)
}

func (ta *TokenAuthority) VerifyToken(tokenString string) (*SafeHerTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SafeHerTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// validate the alg is what you expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return ta.secret, nil
	})

	if err != nil {
		return nil, verificationError(err)
	}

	tokenClaims, ok := token.Claims.(*SafeHerTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return tokenClaims, nil
}

func verificationError(err error) error {
	vErr, ok := err.(*jwt.ValidationError)
	if !ok {
		return ErrTokenInvalid
	}

	switch {
	case vErr.Errors&jwt.ValidationErrorMalformed != 0:
		return ErrTokenMalformed
	case vErr.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
		return ErrTokenExpired
	case vErr.Errors&jwt.ValidationErrorSignatureInvalid != 0:
		return ErrTokenSignature
	}

	return ErrTokenInvalid
}

// HashPassword derives a salted PBKDF2-HMAC-SHA256 hash, with the
// random salt encoded into the stored value.
func HashPassword(password string) (string, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	return fmt.Sprintf("%v$%v",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func CheckPasswordHash(password, hash string) bool {
	segments := strings.Split(hash, "$")
	if len(segments) != 2 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(segments[0])
	if err != nil {
		return false
	}

	expected, err := base64.RawStdEncoding.DecodeString(segments[1])
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hmac.Equal(key, expected)
}
