// Package remote talks to the bookmark gateway over HTTPS.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abearman/mindful-sub000/models"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultMaxRetries = 3
	defaultBaseDelay  = 200 * time.Millisecond
	defaultJitter     = 100 * time.Millisecond
	maxResponseBytes  = 4 << 20
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrAuthTagMismatch = errors.New("stored bookmarks failed authentication")
	ErrServer          = errors.New("gateway error")
)

// StatusError carries the gateway's error body. It unwraps to one of the
// sentinel errors above.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
	sentinel   error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.sentinel
}

type Options struct {
	BaseURL     string
	Origin      string
	TokenSource oauth2.TokenSource
	MaxRetries  uint64
	BaseDelay   time.Duration
	// HTTPClient supplies the underlying transport. Its Transport is wrapped
	// with the bearer token source.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL    string
	origin     string
	http       *http.Client
	maxRetries uint64
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewClient(opts Options) *Client {
	base := http.DefaultTransport
	timeout := 15 * time.Second
	if opts.HTTPClient != nil {
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
		if opts.HTTPClient.Timeout != 0 {
			timeout = opts.HTTPClient.Timeout
		}
	}

	var transport http.RoundTripper = base
	if opts.TokenSource != nil {
		transport = &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, opts.TokenSource), Base: base}
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	baseDelay := opts.BaseDelay
	if baseDelay == 0 {
		baseDelay = defaultBaseDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		origin:     opts.Origin,
		http:       &http.Client{Transport: transport, Timeout: timeout},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// StaticToken is a token source for a bearer token obtained elsewhere.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.baseDelay)
	b = retry.WithJitter(defaultJitter, b)
	return retry.WithMaxRetries(c.maxRetries, b)
}

// do sends one logical request, retrying transport failures and retryable
// gateway errors. The returned body is fully read.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var (
		status  int
		payload []byte
		attempt int
	)

	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.origin != "" {
			req.Header.Set("Origin", c.origin)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return fmt.Errorf("%w: %v", ErrUnauthorized, err)
			}
			c.logger.Info("gateway request failed", zap.String("method", method), zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode >= 400 {
			statusErr := parseStatusError(resp.StatusCode, data)
			if statusErr.Retryable {
				c.logger.Info("gateway returned retryable error", zap.String("method", method), zap.String("path", path), zap.Int("status_code", resp.StatusCode), zap.Int("attempt", attempt))
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}

		status = resp.StatusCode
		payload = data
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return status, payload, nil
}

type errorBody struct {
	Message string `json:"message"`
	Details struct {
		Code      string `json:"code"`
		Retryable bool   `json:"retryable"`
	} `json:"details"`
}

func parseStatusError(status int, data []byte) *StatusError {
	var body errorBody
	_ = json.Unmarshal(data, &body)

	e := &StatusError{
		StatusCode: status,
		Code:       body.Details.Code,
		Message:    body.Message,
	}
	switch {
	case status == http.StatusUnauthorized:
		e.sentinel = ErrUnauthorized
	case status == http.StatusForbidden:
		e.sentinel = ErrForbidden
	case status == http.StatusUnprocessableEntity || body.Details.Code == "AuthTagMismatch":
		e.sentinel = ErrAuthTagMismatch
	case status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		e.sentinel = ErrServer
		// Older gateways send no details; 5xx is worth another try then.
		e.Retryable = body.Details.Code == "" || body.Details.Retryable
	default:
		e.sentinel = ErrBadRequest
	}
	return e
}

// Strategy stores bookmarks through the gateway, encrypted at rest on the
// server side.
type Strategy struct {
	client *Client
}

func NewStrategy(client *Client) *Strategy {
	return &Strategy{client: client}
}

func (s *Strategy) Type() models.StorageType {
	return models.StorageRemote
}

// Load returns an empty collection when the user has nothing stored.
// userId is informational: the gateway derives identity from the token.
func (s *Strategy) Load(ctx context.Context, userId string) ([]models.BookmarkGroup, error) {
	_, data, err := s.client.do(ctx, http.MethodGet, "/bookmarks", nil)
	if err != nil {
		return nil, err
	}
	groups, err := models.ParseGroups(data)
	if err != nil {
		return nil, fmt.Errorf("decoding bookmarks for %s: %w", userId, err)
	}
	return groups, nil
}

func (s *Strategy) Save(ctx context.Context, groups []models.BookmarkGroup, userId string) error {
	groups = models.StripAddNewGroup(groups)
	body, err := json.Marshal(groups)
	if err != nil {
		return err
	}
	_, _, err = s.client.do(ctx, http.MethodPost, "/bookmarks", body)
	return err
}

func (s *Strategy) Delete(ctx context.Context, userId string) error {
	_, _, err := s.client.do(ctx, http.MethodDelete, "/bookmarks", nil)
	return err
}

type preferenceBody struct {
	StorageType models.StorageType `json:"storageType"`
	Found       bool               `json:"found,omitempty"`
}

// Preferences keeps the storage-type preference on the gateway.
type Preferences struct {
	client *Client
}

func NewPreferences(client *Client) *Preferences {
	return &Preferences{client: client}
}

// Get reports found=false when the user never chose a storage type.
func (p *Preferences) Get(ctx context.Context, userId string) (models.StorageType, bool, error) {
	_, data, err := p.client.do(ctx, http.MethodGet, "/preferences", nil)
	if err != nil {
		return "", false, err
	}
	var body preferenceBody
	if err := json.Unmarshal(data, &body); err != nil {
		return "", false, err
	}
	if !body.Found {
		return "", false, nil
	}
	st, err := models.ParseStorageType(string(body.StorageType))
	if err != nil {
		return "", false, err
	}
	return st, true, nil
}

func (p *Preferences) Set(ctx context.Context, userId string, storageType models.StorageType) error {
	body, err := json.Marshal(preferenceBody{StorageType: storageType})
	if err != nil {
		return err
	}
	_, _, err = p.client.do(ctx, http.MethodPut, "/preferences", body)
	return err
}
