// Package portalclient is a Go client for the funding portal API. It keeps the
// caller's session in a TokenStore and drives the application wizard.
package portalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrNoSession is returned when a call needs a session and none is stored.
	ErrNoSession = errors.New("portalclient: no session")
	// ErrSessionInvalid is returned when the server rejected the stored session. The store has been cleared.
	ErrSessionInvalid = errors.New("portalclient: session is invalid or expired")
)

// APIError is a non-2xx answer from the portal.
type APIError struct {
	StatusCode int
	Message    string
	Details    []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal: %d %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Details    []FieldError    `json:"details"`
}

// Client talks to one portal deployment on behalf of one user.
type Client struct {
	http    *resty.Client
	session *Session
	log     zerolog.Logger
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	store      TokenStore
	timeout    time.Duration
	log        zerolog.Logger
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTokenStore persists the session somewhere other than memory.
func WithTokenStore(store TokenStore) Option {
	return func(o *options) { o.store = store }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New creates a client for the portal at baseURL. Call Session().Init before
// using it to pick up a persisted session.
func New(baseURL string, opts ...Option) *Client {
	o := options{timeout: 30 * time.Second, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = NewMemoryStore()
	}

	rc := resty.New()
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	}
	rc.SetBaseURL(baseURL).
		SetTimeout(o.timeout).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:    rc,
		session: newSession(o.store),
		log:     o.log.With().Str("component", "portalclient").Logger(),
	}
	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if token := c.session.Token(); token != "" {
			r.SetAuthToken(token)
		}
		return nil
	})
	return c
}

// Session returns the client's session context.
func (c *Client) Session() *Session {
	return c.session
}

// Config fetches the public portal configuration.
func (c *Client) Config(ctx context.Context) (*PublicConfig, error) {
	var cfg PublicConfig
	if err := c.call(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dashboard fetches the caller's dashboard.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.authed(ctx, http.MethodGet, "/api/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// authed is call for endpoints behind the session. A 401 purges the stored session.
func (c *Client) authed(ctx context.Context, method, path string, body, out interface{}) error {
	if c.session.Token() == "" {
		return ErrNoSession
	}
	return c.checkSession(ctx, c.call(ctx, method, path, body, out))
}

// checkSession purges the stored session when err is a 401 and wraps it in
// ErrSessionInvalid. Other errors pass through.
func (c *Client) checkSession(ctx context.Context, err error) error {
	if StatusCode(err) != http.StatusUnauthorized {
		return err
	}
	if clearErr := c.session.Teardown(ctx); clearErr != nil {
		c.log.Warn().Err(clearErr).Msg("failed to clear rejected session")
	}
	return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return decode(resp, out)
}

func decode(resp *resty.Response, out interface{}) error {
	if resp.IsError() {
		return apiError(resp.StatusCode(), resp.Body())
	}
	var env envelope
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// apiError builds the error for a non-2xx response. Bodies that are not an
// envelope fall back to the status text.
func apiError(status int, body []byte) *APIError {
	var env envelope
	_ = json.Unmarshal(body, &env)
	msg := env.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg, Details: env.Details}
}
