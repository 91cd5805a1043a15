// Package client is a Go client for the backoffice session API.
//
// It keeps one token pair per identity, refreshes an expired access token at most
// once per identity no matter how many requests hit 401 concurrently, and reports
// permission changes through a resync callback.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	headerPermissionsVersion = "X-Permissions-Version"
	defaultTimeout           = 30 * time.Second
)

// ErrSessionExpired is returned once refreshing failed and the identity's tokens were cleared.
var ErrSessionExpired = errors.New("session expired, log in again")

// ErrNotLoggedIn is returned for requests made on behalf of an identity without tokens.
var ErrNotLoggedIn = errors.New("identity is not logged in")

// APIError is a non-2xx answer carrying the service's error envelope.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Details   any
	RequestID string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// ResyncFunc is called when an identity's permission version changes.
// The consumer is expected to reload its cached identity, typically with Me.
type ResyncFunc func(ctx context.Context, identity, version string)

// Tokens is the pair held for one identity.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

type identityState struct {
	tokens  Tokens
	version string
}

// Client talks to one backoffice deployment on behalf of any number of identities.
type Client struct {
	baseURL    string
	httpClient *http.Client
	resync     ResyncFunc
	logger     *slog.Logger

	mu         sync.Mutex
	identities map[string]*identityState
	refreshes  singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithResync registers the callback for permission changes.
func WithResync(fn ResyncFunc) Option {
	return func(c *Client) {
		c.resync = fn
	}
}

// WithLogger sets the logger used for refresh and resync events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		identities: make(map[string]*identityState),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetTokens stores a token pair for identity, e.g. one restored from disk.
func (c *Client) SetTokens(identity string, tokens Tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.identities[identity]
	if !ok {
		state = &identityState{}
		c.identities[identity] = state
	}
	state.tokens = tokens
}

// Tokens returns the pair held for identity.
func (c *Client) Tokens(identity string) (Tokens, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.identities[identity]
	if !ok || state.tokens.AccessToken == "" {
		return Tokens{}, false
	}

	return state.tokens, true
}

// Forget drops everything held for identity.
func (c *Client) Forget(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.identities, identity)
}

// Do sends an authenticated JSON request for identity and decodes the response data into out.
// A 401 triggers one shared refresh for the identity and a single retry with the new token.
func (c *Client) Do(ctx context.Context, identity, method, path string, in, out any) error {
	body, err := encodeBody(in)
	if err != nil {
		return err
	}

	tokens, ok := c.Tokens(identity)
	if !ok {
		return ErrNotLoggedIn
	}

	resp, err := c.send(ctx, method, path, body, tokens.AccessToken)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)

		accessToken, err := c.refresh(ctx, identity, tokens.AccessToken)
		if err != nil {
			return err
		}

		resp, err = c.send(ctx, method, path, body, accessToken)
		if err != nil {
			return err
		}
	}
	defer drain(resp)

	c.observeVersion(ctx, identity, resp.Header.Get(headerPermissionsVersion))

	return decodeResponse(resp, out)
}

// refresh exchanges the identity's refresh token once for every caller that saw staleToken rejected.
func (c *Client) refresh(ctx context.Context, identity, staleToken string) (string, error) {
	result, err, shared := c.refreshes.Do(identity, func() (any, error) {
		tokens, ok := c.Tokens(identity)
		if !ok {
			return "", ErrSessionExpired
		}
		// A refresh finished between our 401 and this call
		if tokens.AccessToken != staleToken {
			return tokens.AccessToken, nil
		}

		var refreshed struct {
			AccessToken string `json:"accessToken"`
		}
		// The refresh call must outlive any single waiter's cancellation
		refreshCtx := context.WithoutCancel(ctx)
		if err := c.post(refreshCtx, "/auth/refresh", map[string]string{"refreshToken": tokens.RefreshToken}, &refreshed); err != nil {
			c.logger.Info("Refresh rejected, clearing tokens", slog.String("identity", identity), slog.Any("error", err))
			c.Forget(identity)

			return "", errors.Wrap(ErrSessionExpired, err.Error())
		}

		c.mu.Lock()
		if state, ok := c.identities[identity]; ok {
			state.tokens.AccessToken = refreshed.AccessToken
		}
		c.mu.Unlock()

		return refreshed.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	if shared {
		c.logger.Debug("Joined in-flight refresh", slog.String("identity", identity))
	}

	return result.(string), nil
}

// observeVersion records the permission version and fires the resync callback on change.
func (c *Client) observeVersion(ctx context.Context, identity, version string) {
	if version == "" {
		return
	}

	c.mu.Lock()
	state, ok := c.identities[identity]
	if !ok {
		c.mu.Unlock()

		return
	}
	previous := state.version
	state.version = version
	c.mu.Unlock()

	if previous != "" && previous != version && c.resync != nil {
		c.logger.Info("Permission version changed", slog.String("identity", identity))
		c.resync(ctx, identity, version)
	}
}

// post sends an unauthenticated JSON request.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := encodeBody(in)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return err
	}
	defer drain(resp)

	return decodeResponse(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, accessToken string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}

	return resp, nil
}

func encodeBody(in any) ([]byte, error) {
	if in == nil {
		return nil, nil
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "encode request body")
	}

	return body, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode)}
		}

		return errors.Wrap(err, "decode response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: env.Meta.RequestID}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}

		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}

	return errors.Wrap(json.Unmarshal(env.Data, out), "decode response data")
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
