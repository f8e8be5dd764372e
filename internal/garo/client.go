package garo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://end-user-api.prod.garo-next-gen.com"

// TokenProvider supplies a valid bearer token on demand. Acquisition and
// refresh are the provider's concern; the client only attaches the result.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client wraps the Garo cloud API, one typed operation per resource kind.
// It maps failures onto the APIError taxonomy and never retries; retry and
// fallback policy belong to the caller.
type Client struct {
	baseURL string
	creds   TokenProvider
	client  *http.Client
}

func NewClient(baseURL string, creds TokenProvider, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListStations returns all charging stations visible to the account,
// including charging unit and status relationships.
func (c *Client) ListStations(ctx context.Context) (*StationList, error) {
	query := url.Values{}
	query.Set("context", "Owner")
	query.Set("include_relationships", "true")

	var payload StationList
	if err := c.do(ctx, "list stations", http.MethodGet, "/charging-stations", query, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) ConnectorStatus(ctx context.Context, stationID string) ([]ConnectorStatus, error) {
	query := url.Values{}
	query.Set("context", "Owner")

	var payload []ConnectorStatus
	path := "/charging-stations/" + url.PathEscape(stationID) + "/connector-status"
	if err := c.do(ctx, "connector status", http.MethodGet, path, query, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// LatestMeterValues returns the upstream's cached measures for one
// connector. Pair with TriggerMeterValues to minimise staleness.
func (c *Client) LatestMeterValues(ctx context.Context, stationID string, connectorID int) ([]MeterValue, error) {
	query := url.Values{}
	query.Set("context", "Owner")
	query.Set("charging_station_id", stationID)
	query.Set("connector_id", strconv.Itoa(connectorID))

	var payload []MeterValue
	if err := c.do(ctx, "meter values", http.MethodGet, "/meter-values/latest", query, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// TriggerMeterValues asks the station to push a fresh MeterValues reading
// to the cloud before the next read.
func (c *Client) TriggerMeterValues(ctx context.Context, stationID string, connectorID int) error {
	body := triggerRequest{
		RequestedMessage: "MeterValues",
		ConnectorID:      connectorID,
	}
	path := "/actions/trigger-message/" + url.PathEscape(stationID)
	return c.do(ctx, "trigger meter values", http.MethodPut, path, nil, body, nil)
}

func (c *Client) Transactions(ctx context.Context, stationID string, connectorID int) (*TransactionList, error) {
	query := url.Values{}
	query.Set("context", "Owner")
	query.Set("charging_station_id", stationID)
	query.Set("connector_id", strconv.Itoa(connectorID))

	var payload TransactionList
	if err := c.do(ctx, "transactions", http.MethodGet, "/transactions", query, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) Configuration(ctx context.Context, stationID string) ([]ConfigItem, error) {
	var payload []ConfigItem
	path := "/charging-stations/" + url.PathEscape(stationID) + "/configuration"
	if err := c.do(ctx, "configuration", http.MethodGet, path, nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// UserByToken resolves one session ID token. The API only accepts one
// token per call and keys the response by token.
func (c *Client) UserByToken(ctx context.Context, token string) (map[string]UserInfo, error) {
	query := url.Values{}
	query.Set("role", "Owner")
	query.Set("id_tokens", token)

	var payload map[string]UserInfo
	if err := c.do(ctx, "user by token", http.MethodGet, "/users", query, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CommitConfiguration applies one configuration value through the
// change-configuration action endpoint, which propagates reliably to the
// physical station, unlike the direct configuration PUT.
func (c *Client) CommitConfiguration(ctx context.Context, stationID, key, value string) (*CommitResponse, error) {
	body := commitRequest{
		ConfigurationVariables: []configVariable{{Key: key, Value: value}},
	}

	var payload CommitResponse
	path := "/actions/change-configuration/" + url.PathEscape(stationID)
	if err := c.do(ctx, "commit configuration", http.MethodPut, path, nil, body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return &APIError{Kind: ErrUnauthorized, Op: op, Message: fmt.Sprintf("acquire token: %v", err)}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &APIError{Kind: ErrMalformed, Op: op, Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &APIError{Kind: ErrMalformed, Op: op, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Kind: ErrServerError, Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Op:      op,
			Message: string(message),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: ErrMalformed, Op: op, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
