// Package client is a Go client for the access-control auth API. It stores the
// session locally and transparently refreshes expired access tokens.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 15 * time.Second

// Options allows overriding client dependencies.
type Options struct {
	HTTPClient *http.Client
	Store      TokenStore
	Logger     *zap.Logger
	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration
}

// Client wraps HTTP calls to the auth server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      TokenStore
	logger     *zap.Logger

	refreshes      singleflight.Group
	refreshTimeout time.Duration
}

// User is the public account projection returned at login.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// SessionTTL is the server's view of the session countdown.
type SessionTTL struct {
	TimeToLifeSeconds int64  `json:"timeToLifeSeconds"`
	ExpTime           string `json:"expTime"`
	TokenExpTime      string `json:"tokenExpTime,omitempty"`
}

// Remaining returns the countdown as a duration.
func (t SessionTTL) Remaining() time.Duration {
	return time.Duration(t.TimeToLifeSeconds) * time.Second
}

// Request describes an authenticated call. Body is kept as bytes so the call
// can be replayed after a refresh.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	refreshTimeout := httpClient.Timeout
	if refreshTimeout <= 0 {
		refreshTimeout = defaultTimeout
	}

	return &Client{
		baseURL:        parsed,
		httpClient:     httpClient,
		store:          store,
		logger:         logger,
		refreshTimeout: refreshTimeout,
	}, nil
}

// State returns the stored session.
func (c *Client) State() (State, error) {
	return c.store.Load()
}

// Login authenticates and stores the new session.
func (c *Client) Login(ctx context.Context, identifier, password string) (*User, error) {
	const op = "Login"

	resp, err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return nil, wrapError(op, KindConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, statusError(op, KindCredentials, resp)
	case resp.StatusCode != http.StatusOK:
		return nil, statusError(op, KindServer, resp)
	}

	var body struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		User         User   `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, wrapError(op, KindServer, err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return nil, &Error{Op: op, Kind: KindServer, Status: resp.StatusCode, Err: errors.New("empty tokens")}
	}

	if err := c.store.Save(State{
		UserToken:    body.AccessToken,
		RefreshToken: body.RefreshToken,
		UserRole:     body.User.Role,
		Username:     body.User.Username,
	}); err != nil {
		return nil, err
	}
	return &body.User, nil
}

// Refresh exchanges the stored refresh token for a new pair. Concurrent
// callers share a single request. The shared request is detached from any one
// caller's cancellation; a caller that gives up waiting gets a KindConnection
// error while the refresh completes for the others.
func (c *Client) Refresh(ctx context.Context) error {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return nil, c.refresh(shared)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return wrapError("Refresh", KindConnection, ctx.Err())
	}
}

func (c *Client) refresh(ctx context.Context) error {
	const op = "Refresh"

	state, err := c.store.Load()
	if err != nil {
		return err
	}
	if state.RefreshToken == "" {
		return ErrNoSession
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/auth/refresh-token", "", map[string]string{
		"token": state.RefreshToken,
	})
	if err != nil {
		return wrapError(op, KindConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return statusError(op, KindRejected, resp)
	case resp.StatusCode != http.StatusOK:
		return statusError(op, KindServer, resp)
	}

	var body struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return wrapError(op, KindServer, err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return &Error{Op: op, Kind: KindServer, Status: resp.StatusCode, Err: errors.New("empty tokens")}
	}

	state.UserToken = body.AccessToken
	state.RefreshToken = body.RefreshToken
	return c.store.Save(state)
}

// FetchWithAuth performs req with the stored access token. On a 401 or a
// transport failure it refreshes once and retries once. If the refresh fails
// the local session is cleared and ErrSessionEnded is returned with a nil
// response. A cancelled or timed out refresh is a KindConnection error and
// keeps the session. Any other status is returned unchanged.
func (c *Client) FetchWithAuth(ctx context.Context, req Request) (*http.Response, error) {
	const op = "FetchWithAuth"

	refreshed := false
	for {
		state, err := c.store.Load()
		if err != nil {
			return nil, err
		}
		if state.Empty() {
			return nil, ErrNoSession
		}

		resp, err := c.send(ctx, req, state.UserToken)
		if err == nil && resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}
		if refreshed {
			if err != nil {
				return nil, wrapError(op, KindConnection, err)
			}
			return resp, nil
		}
		if resp != nil {
			drain(resp)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapError(op, KindConnection, ctxErr)
		}
		if err != nil {
			c.logger.Debug("request failed; refreshing session", zap.String("path", req.Path), zap.Error(err))
		}

		if err := c.Refresh(ctx); err != nil {
			if ctx.Err() != nil || isContextError(err) {
				return nil, wrapError(op, KindConnection, err)
			}
			c.logger.Info("refresh failed; ending session", zap.Error(err))
			if clearErr := c.store.Clear(); clearErr != nil {
				c.logger.Warn("clear session", zap.Error(clearErr))
			}
			return nil, fmt.Errorf("%w: %w", ErrSessionEnded, err)
		}
		refreshed = true
	}
}

// Logout notifies the server on a best-effort basis, then clears local state
// regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	state, err := c.store.Load()
	if err == nil && !state.Empty() {
		resp, err := c.doJSON(ctx, http.MethodPost, "/auth/logout", state.UserToken, map[string]string{
			"refreshToken": state.RefreshToken,
		})
		if err != nil {
			c.logger.Debug("logout request failed", zap.Error(err))
		} else {
			drain(resp)
		}
	}
	return c.store.Clear()
}

// RemainingTTL returns the session countdown for userID.
func (c *Client) RemainingTTL(ctx context.Context, userID string) (SessionTTL, error) {
	return c.ttlCall(ctx, "RemainingTTL", Request{
		Method: http.MethodGet,
		Path:   "/auth/token-ttl/" + url.PathEscape(userID),
	})
}

// RenewTTL resets the session countdown for userID.
func (c *Client) RenewTTL(ctx context.Context, userID string) (SessionTTL, error) {
	body, err := json.Marshal(map[string]string{"userId": userID})
	if err != nil {
		return SessionTTL{}, err
	}
	return c.ttlCall(ctx, "RenewTTL", Request{
		Method: http.MethodPut,
		Path:   "/auth/token-ttl",
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	})
}

func (c *Client) ttlCall(ctx context.Context, op string, req Request) (SessionTTL, error) {
	resp, err := c.FetchWithAuth(ctx, req)
	if err != nil {
		return SessionTTL{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return SessionTTL{}, statusError(op, KindNotFound, resp)
	case resp.StatusCode != http.StatusOK:
		return SessionTTL{}, statusError(op, KindServer, resp)
	}

	var ttl SessionTTL
	if err := json.NewDecoder(resp.Body).Decode(&ttl); err != nil {
		return SessionTTL{}, wrapError(op, KindServer, err)
	}
	return ttl, nil
}

func (c *Client) send(ctx context.Context, r Request, token string) (*http.Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := c.newRequest(ctx, method, r.Path, token, body)
	if err != nil {
		return nil, err
	}
	for key, values := range r.Header {
		if strings.EqualFold(key, "Authorization") {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return c.httpClient.Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, err
		}
		body = buf
	}

	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	full := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, full.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// statusError reads the server's error envelope into an *Error.
func statusError(op string, kind Kind, resp *http.Response) error {
	clientErr := &Error{Op: op, Kind: kind, Status: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &envelope) == nil {
		clientErr.Code = envelope.Error.Code
		clientErr.Message = envelope.Error.Message
	}
	clientErr.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	return clientErr
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
