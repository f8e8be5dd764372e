package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultClientID = "2tbuisnbl1t2a5gc36lhb2b6c3"
	DefaultRegion   = "eu-west-1"

	initiateAuthTarget = "AWSCognitoIdentityProviderService.InitiateAuth"

	// Refresh ahead of expiry so an in-flight cycle never races a dying token.
	refreshMargin = 5 * time.Minute
)

// CognitoProvider authenticates against the AWS Cognito user pool the Garo
// cloud uses and hands out bearer access tokens. It refreshes lazily on
// Token calls; callers treat it as an opaque credential source.
type CognitoProvider struct {
	username string
	password string
	clientID string
	endpoint string
	client   *http.Client
	now      func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

type CognitoConfig struct {
	Username string
	Password string
	ClientID string
	Region   string
	// Endpoint overrides the regional Cognito URL, for tests.
	Endpoint string
	Timeout  time.Duration
}

func NewCognitoProvider(cfg CognitoConfig) *CognitoProvider {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CognitoProvider{
		username: cfg.Username,
		password: cfg.Password,
		clientID: clientID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

type initiateAuthRequest struct {
	ClientID       string            `json:"ClientId"`
	AuthFlow       string            `json:"AuthFlow"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type initiateAuthResponse struct {
	AuthenticationResult struct {
		AccessToken  string `json:"AccessToken"`
		RefreshToken string `json:"RefreshToken"`
		ExpiresIn    int    `json:"ExpiresIn"`
	} `json:"AuthenticationResult"`
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// Token returns a currently valid access token, authenticating or
// refreshing first if needed.
func (p *CognitoProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && p.now().Before(p.expiresAt.Add(-refreshMargin)) {
		return p.accessToken, nil
	}

	if p.refreshToken != "" {
		if err := p.initiateAuth(ctx, "REFRESH_TOKEN_AUTH", map[string]string{
			"REFRESH_TOKEN": p.refreshToken,
		}); err == nil {
			return p.accessToken, nil
		}
		// A failed refresh falls through to a full password auth.
	}

	if err := p.initiateAuth(ctx, "USER_PASSWORD_AUTH", map[string]string{
		"USERNAME": p.username,
		"PASSWORD": p.password,
	}); err != nil {
		return "", err
	}
	return p.accessToken, nil
}

func (p *CognitoProvider) initiateAuth(ctx context.Context, flow string, params map[string]string) error {
	body, err := json.Marshal(initiateAuthRequest{
		ClientID:       p.clientID,
		AuthFlow:       flow,
		AuthParameters: params,
	})
	if err != nil {
		return fmt.Errorf("cognito encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cognito request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", initiateAuthTarget)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("cognito request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("cognito read: %w", err)
	}

	var payload initiateAuthResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("cognito decode: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cognito auth failed (%s): %s %s", flow, payload.Type, payload.Message)
	}
	if payload.AuthenticationResult.AccessToken == "" {
		return fmt.Errorf("cognito auth returned no access token")
	}

	p.accessToken = payload.AuthenticationResult.AccessToken
	if payload.AuthenticationResult.RefreshToken != "" {
		p.refreshToken = payload.AuthenticationResult.RefreshToken
	}
	p.expiresAt = p.tokenExpiry(p.accessToken, payload.AuthenticationResult.ExpiresIn)
	return nil
}

// tokenExpiry prefers the exp claim baked into the access token over the
// ExpiresIn field, which is relative to a response time we did not record.
func (p *CognitoProvider) tokenExpiry(token string, expiresIn int) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return p.now().Add(time.Duration(expiresIn) * time.Second)
}
