package auth_test

import (
	"testing"
	"time"

	"github.com/abearman/mindful-sub000/api/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestCreateAndVerify(t *testing.T) {
	a := auth.NewAuthenticator(secret, "")

	token, err := a.CreateToken("user-1", time.Hour)
	require.NoError(t, err)

	userId, exp, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userId)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestVerify_FallsBackToIdClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "legacy-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	userId, _, err := auth.NewAuthenticator(secret, "").VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "legacy-user", userId)
}

func TestVerify_Rejections(t *testing.T) {
	a := auth.NewAuthenticator(secret, "")

	expired, err := a.CreateToken("user-1", -time.Minute)
	require.NoError(t, err)

	otherSecret, err := auth.NewAuthenticator([]byte("other"), "").CreateToken("user-1", time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString(secret)
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", auth.ErrMissingToken},
		{"garbage", "not.a.jwt", auth.ErrInvalidToken},
		{"expired", expired, auth.ErrInvalidToken},
		{"wrong secret", otherSecret, auth.ErrInvalidToken},
		{"no exp", noExp, auth.ErrInvalidToken},
		{"no subject", noSub, auth.ErrMissingUser},
		{"wrong algorithm", hs512, auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := a.VerifyToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerify_Issuer(t *testing.T) {
	issuing := auth.NewAuthenticator(secret, "https://issuer.example")
	token, err := issuing.CreateToken("user-1", time.Hour)
	require.NoError(t, err)

	_, _, err = issuing.VerifyToken(token)
	assert.NoError(t, err)

	_, _, err = auth.NewAuthenticator(secret, "https://other.example").VerifyToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestResolve(t *testing.T) {
	a := auth.NewAuthenticator(secret, "")

	userId, err := a.Resolve("from-authorizer", "")
	require.NoError(t, err)
	assert.Equal(t, "from-authorizer", userId)

	token, err := a.CreateToken("from-token", time.Hour)
	require.NoError(t, err)
	userId, err = a.Resolve("", token)
	require.NoError(t, err)
	assert.Equal(t, "from-token", userId)

	_, err = a.Resolve("", "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}
