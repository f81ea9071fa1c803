package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatroomd/chatroomd/internal/database"
	"github.com/chatroomd/chatroomd/internal/types"
	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredential is returned for any credential that does not
// resolve to a known account: missing token, bad signature, expired
// claims, or an unknown subject.
var ErrInvalidCredential = errors.New("invalid credential")

const (
	userIdClaim = "user-id"
	expClaim    = "exp"
)

// Authenticator turns an opaque bearer credential into a verified user.
// Verification failure must leave no trace anywhere else in the system;
// callers reject the connection before any room logic runs.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (types.User, error)
}

type TokenAuthenticator struct {
	db  database.Repository
	key []byte
}

func NewTokenAuthenticator(db database.Repository, signingKey []byte) *TokenAuthenticator {
	return &TokenAuthenticator{db: db, key: signingKey}
}

// IssueToken creates a signed session token for the given account.
func (a *TokenAuthenticator) IssueToken(userId int, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(a.key)
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, credential string) (types.User, error) {
	if credential == "" {
		return types.User{}, ErrInvalidCredential
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.key, nil
	})
	if err != nil || !token.Valid {
		return types.User{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.User{}, ErrInvalidCredential
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return types.User{}, ErrInvalidCredential
	}

	account, err := a.db.GetAccountById(ctx, int(userId))
	if err != nil {
		return types.User{}, ErrInvalidCredential
	}

	return types.User{
		Id:           account.Id,
		Username:     account.Username,
		EmailAddress: account.EmailAddress,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}, nil
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func VerifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
