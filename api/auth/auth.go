package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("token not provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingUser  = errors.New("token has no subject")
)

// Authenticator verifies HS256 bearer tokens issued by the identity provider
// and extracts the user id. The id comes from "sub", falling back to "id".
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret []byte, issuer string) *Authenticator {
	return &Authenticator{secret: secret, issuer: issuer}
}

func (a *Authenticator) CreateToken(userId string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userId,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(a.secret)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (a *Authenticator) VerifyToken(tokenString string) (string, time.Time, error) {
	if tokenString == "" {
		return "", time.Time{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", time.Time{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	userId, _ := claims["sub"].(string)
	if userId == "" {
		userId, _ = claims["id"].(string)
	}
	if userId == "" {
		return "", time.Time{}, ErrMissingUser
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}

	return userId, exp.Time, nil
}

// Resolve returns the caller's user id. A non-empty trusted id was already
// verified by an upstream authorizer and is used as is.
func (a *Authenticator) Resolve(trustedUserId, token string) (string, error) {
	if trustedUserId != "" {
		return trustedUserId, nil
	}
	userId, _, err := a.VerifyToken(token)
	return userId, err
}
