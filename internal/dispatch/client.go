package dispatch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// CommandPath is the device endpoint every command is posted to.
const CommandPath = "/command"

// PingBody is the wake probe.
const PingBody = "action=ping"

// StatusError is returned when the device answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// Transport posts a form body to the device and returns the response text.
type Transport interface {
	Post(ctx context.Context, body string) (string, error)
}

// Client is the HTTP Transport.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a client posting to base+CommandPath. If client is nil,
// http.DefaultClient is used.
func NewClient(base string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimSuffix(base, "/") + CommandPath,
		client:   client,
	}
}

// Endpoint returns the full command URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Post sends body as application/x-www-form-urlencoded.
func (c *Client) Post(ctx context.Context, body string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return string(data), nil
}

// ResolveBase picks the command origin. When the panel is served from the
// device address the commands go to the same origin, which is reported as
// the empty string; otherwise the fixed device URL is used.
func ResolveBase(servedHost, deviceHost, deviceURL string) string {
	host := servedHost
	if h, _, err := net.SplitHostPort(servedHost); err == nil {
		host = h
	}
	if host != "" && strings.EqualFold(host, deviceHost) {
		return ""
	}
	return deviceURL
}
