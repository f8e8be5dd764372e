package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsignedJWT builds a structurally valid token with the given exp claim;
// expiry extraction never verifies the signature.
func unsignedJWT(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + claims + "."
}

type authCall struct {
	Flow   string
	Params map[string]string
}

func newCognitoServer(t *testing.T, calls *[]authCall, token string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-amz-json-1.1", r.Header.Get("Content-Type"))
		assert.Equal(t, "AWSCognitoIdentityProviderService.InitiateAuth", r.Header.Get("X-Amz-Target"))

		var req struct {
			ClientID       string            `json:"ClientId"`
			AuthFlow       string            `json:"AuthFlow"`
			AuthParameters map[string]string `json:"AuthParameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*calls = append(*calls, authCall{Flow: req.AuthFlow, Params: req.AuthParameters})

		json.NewEncoder(w).Encode(map[string]interface{}{
			"AuthenticationResult": map[string]interface{}{
				"AccessToken":  token,
				"RefreshToken": "refresh-1",
				"ExpiresIn":    3600,
			},
		})
	}))
}

func TestTokenPasswordAuth(t *testing.T) {
	var calls []authCall
	srv := newCognitoServer(t, &calls, unsignedJWT(time.Now().Add(time.Hour)))
	defer srv.Close()

	p := NewCognitoProvider(CognitoConfig{
		Username: "user@example.com",
		Password: "hunter2",
		Endpoint: srv.URL,
	})

	token, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	require.Len(t, calls, 1)
	assert.Equal(t, "USER_PASSWORD_AUTH", calls[0].Flow)
	assert.Equal(t, "user@example.com", calls[0].Params["USERNAME"])
	assert.Equal(t, "hunter2", calls[0].Params["PASSWORD"])
}

func TestTokenCachedWhileValid(t *testing.T) {
	var calls []authCall
	srv := newCognitoServer(t, &calls, unsignedJWT(time.Now().Add(time.Hour)))
	defer srv.Close()

	p := NewCognitoProvider(CognitoConfig{Username: "u", Password: "p", Endpoint: srv.URL})

	first, err := p.Token(context.Background())
	require.NoError(t, err)
	second, err := p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, calls, 1, "a valid cached token must not trigger another auth call")
}

func TestTokenRefreshesNearExpiry(t *testing.T) {
	var calls []authCall
	// Expiry within the refresh margin forces a refresh on the next call.
	srv := newCognitoServer(t, &calls, unsignedJWT(time.Now().Add(time.Minute)))
	defer srv.Close()

	p := NewCognitoProvider(CognitoConfig{Username: "u", Password: "p", Endpoint: srv.URL})

	_, err := p.Token(context.Background())
	require.NoError(t, err)
	_, err = p.Token(context.Background())
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, "USER_PASSWORD_AUTH", calls[0].Flow)
	assert.Equal(t, "REFRESH_TOKEN_AUTH", calls[1].Flow)
	assert.Equal(t, "refresh-1", calls[1].Params["REFRESH_TOKEN"])
}

func TestTokenAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"__type":  "NotAuthorizedException",
			"message": "Incorrect username or password.",
		})
	}))
	defer srv.Close()

	p := NewCognitoProvider(CognitoConfig{Username: "u", Password: "wrong", Endpoint: srv.URL})

	_, err := p.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotAuthorizedException")
}

func TestTokenExpiryFallsBackToExpiresIn(t *testing.T) {
	p := NewCognitoProvider(CognitoConfig{Username: "u", Password: "p"})
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	expiry := p.tokenExpiry("not-a-jwt", 1800)
	assert.Equal(t, now.Add(30*time.Minute), expiry)

	expiry = p.tokenExpiry("not-a-jwt", 0)
	assert.Equal(t, now.Add(time.Hour), expiry)
}

func TestTokenExpiryPrefersExpClaim(t *testing.T) {
	p := NewCognitoProvider(CognitoConfig{Username: "u", Password: "p"})
	exp := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	expiry := p.tokenExpiry(unsignedJWT(exp), 60)
	assert.Equal(t, exp.Unix(), expiry.Unix())
}
