// Package httpauth attaches bearer credentials to outgoing provider calls
// and refreshes them once when the provider answers 401.
package httpauth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRefreshUnsupported is returned by token sources that cannot renew
// their credential.
var ErrRefreshUnsupported = errors.New("token refresh not supported")

type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	http   Doer
	tokens TokenSource
}

func NewClient(tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}, tokens: tokens}
}

// WithDoer swaps the underlying transport.
func (c *Client) WithDoer(d Doer) *Client {
	c.http = d
	return c
}

// Do sends req with a bearer token. A 401 triggers exactly one refresh and
// one replay; the second response is returned whatever its status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	resp, err := c.send(req, body, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	token, err = c.tokens.Refresh(ctx)
	if errors.Is(err, ErrRefreshUnsupported) {
		return resp, nil
	}
	drain(resp)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return c.send(req, body, token)
}

func (c *Client) send(req *http.Request, body []byte, token string) (*http.Response, error) {
	r := req.Clone(req.Context())
	if body != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return c.http.Do(r)
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return b, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
