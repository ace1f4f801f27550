// Package transport is the authenticated JSON HTTP layer under the account
// API clients. It applies bearer tokens, sets common headers, and maps
// non-2xx responses to typed API errors so the layers above can distinguish
// transient from permanent failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/agentstation/contactsync/pkg/errors"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// Client performs authenticated JSON requests on behalf of one account.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	account string
}

// New creates a transport client for the named account.
func New(account string, tokens TokenSource) *Client {
	return &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
		account: account,
	}
}

// WithHTTPClient overrides the underlying HTTP client, for tests and custom
// transports.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON performs a POST with a JSON body and decodes the response into
// out. A nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	return c.do(ctx, http.MethodPost, url, body, out)
}

// DeleteJSON performs a DELETE and decodes any response body into out.
func (c *Client) DeleteJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodDelete, url, nil, out)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	applyBearer(req, token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.ErrCanceled
		}
		return errors.NewAPIError(c.account, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.NewAPIError(c.account, resp.StatusCode, "malformed response body: "+err.Error())
	}
	return nil
}

// apiError extracts the service's error message when the body carries the
// standard {"error": {"message": ...}} envelope.
func (c *Client) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	message := http.StatusText(resp.StatusCode)
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	return errors.NewAPIError(c.account, resp.StatusCode, message)
}
