// Package e2etest runs the real HTTP server on a random port and talks to it
// the way a browser-based client would, cookies included.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"time"
)

type Client struct {
	client       *http.Client
	url          string
	secFetchSite string
}

// NewClient creates a cookie-aware JSON API client.
func NewClient(url string) (*Client, error) {
	return NewClientWithSecFetchSite(url, "same-origin")
}

// NewClientWithSecFetchSite creates a client that sends the given
// Sec-Fetch-Site header on every request. Useful for simulating
// cross-origin requests against the CSRF protection.
func NewClientWithSecFetchSite(url, secFetchSite string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, fmt.Errorf("create unsafe cookie jar: %w", err)
	}
	return &Client{
		client:       &http.Client{Jar: jar},
		url:          url,
		secFetchSite: secFetchSite,
	}, nil
}

// unsafeCookieJar stores Secure cookies even though the test server speaks
// plain HTTP on localhost.
type unsafeCookieJar struct {
	jar *cookiejar.Jar
}

func newUnsafeCookieJar() (*unsafeCookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}
	return &unsafeCookieJar{jar: jar}, nil
}

func (j *unsafeCookieJar) SetCookies(u *neturl.URL, cookies []*http.Cookie) {
	for _, cookie := range cookies {
		cookie.Secure = false
	}
	j.jar.SetCookies(u, cookies)
}

func (j *unsafeCookieJar) Cookies(u *neturl.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.url+urlPath,
			nil,
		); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return fmt.Errorf("close response body: %w", err)
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return fmt.Errorf("close response body: %w", err)
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Login establishes a session. A zero userID creates a fresh user; the
// created user's id is returned.
func (c *Client) Login(ctx context.Context, userID int) (int, error) {
	var result struct {
		UserID int `json:"user_id"`
	}
	body := map[string]int{"user_id": userID}
	if err := c.DoJSON(ctx, http.MethodPost, "/api/session", body, &result); err != nil {
		return 0, fmt.Errorf("login: %w", err)
	}
	return result.UserID, nil
}

// Logout tears down the session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.DoJSON(ctx, http.MethodDelete, "/api/session", nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Get fetches a URL and returns the response. The caller closes the body.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+urlPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// GetJSON fetches a URL and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, urlPath string, out any) error {
	return c.DoJSON(ctx, http.MethodGet, urlPath, nil, out)
}

// PostJSON sends body as JSON and decodes the JSON response into out. A nil
// out discards the response body.
func (c *Client) PostJSON(ctx context.Context, urlPath string, body, out any) error {
	return c.DoJSON(ctx, http.MethodPost, urlPath, body, out)
}

// PutJSON sends body as JSON and decodes the JSON response into out.
func (c *Client) PutJSON(ctx context.Context, urlPath string, body, out any) error {
	return c.DoJSON(ctx, http.MethodPut, urlPath, body, out)
}

// DoJSON performs a JSON request. Non-2xx responses become an error carrying
// the status code and response body.
func (c *Client) DoJSON(ctx context.Context, method, urlPath string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// http.CrossOriginProtection trusts requests that carry Sec-Fetch-Site:
	// same-origin the way browsers send it.
	req.Header.Set("Sec-Fetch-Site", c.secFetchSite)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx JSON API responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}
