// Package suretakipsdk is a minimal HTTP client for the Süre Takip
// document API: the master document, the watch endpoint and the users
// collection.
package suretakipsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"suretakip/internal/domain"
)

// ErrNotFound marks a 404: the document has never been written.
var ErrNotFound = errors.New("not found")

// Client talks to one server. Either BearerToken or APIKey authenticates.
type Client struct {
	BaseURL     string
	BearerToken string
	APIKey      string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: 15 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetDocument fetches the master document.
func (c *Client) GetDocument(ctx context.Context) (*domain.Document, error) {
	var doc domain.Document
	if err := c.do(ctx, http.MethodGet, "/v1/document", nil, &doc); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// PutDocument replaces the master document wholesale.
func (c *Client) PutDocument(ctx context.Context, doc domain.Document) error {
	return c.do(ctx, http.MethodPut, "/v1/document", doc, nil)
}

// WatchDocument long-polls until the remote lastUpdate differs from since
// or the server-side timeout expires. The bool reports whether a changed
// document came back.
func (c *Client) WatchDocument(ctx context.Context, since string, timeout time.Duration) (*domain.Document, bool, error) {
	q := url.Values{}
	if since != "" {
		q.Set("since", since)
	}
	if timeout > 0 {
		q.Set("timeout_s", strconv.Itoa(int(timeout.Seconds())))
	}
	path := "/v1/document/watch"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, false, err
	}
	// The long poll outlives the default request timeout on purpose.
	client := &http.Client{Timeout: timeout + c.timeout()}
	res, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNoContent {
		return nil, false, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, false, readAPIError(res)
	}
	var doc domain.Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("decode watch response: %w", err)
	}
	return &doc, true, nil
}

// ListUsers fetches every profile.
func (c *Client) ListUsers(ctx context.Context) ([]domain.AppUser, error) {
	var users []domain.AppUser
	if err := c.do(ctx, http.MethodGet, "/v1/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// PutUser upserts one profile keyed by email.
func (c *Client) PutUser(ctx context.Context, u domain.AppUser) error {
	return c.do(ctx, http.MethodPut, "/v1/users/"+url.PathEscape(u.Email), u, nil)
}

// Token exchanges dev credentials for a bearer token.
func (c *Client) Token(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/token", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 15 * time.Second
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	} else if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.timeout()}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return readAPIError(res)
	}
	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(res *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
}
