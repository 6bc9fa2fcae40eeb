package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Client holds HTTP client state for CLI commands. Calls go through a
// circuit breaker that opens after repeated transport or 5xx failures.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Out        io.Writer

	breaker *gobreaker.CircuitBreaker
}

// NewClient returns a Client for the server at baseURL.
func NewClient(baseURL, token string, hc *http.Client) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: hc,
		Out:        os.Stdout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "roster-api",
			MaxRequests: 1,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
		}),
	}
}

// apiError is a non-2xx reply from the server.
type apiError struct {
	Status int
	Msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Msg)
}

type reply struct {
	status int
	body   []byte
}

// do sends a request with an optional JSON body and decodes a JSON reply
// into v (may be nil). 4xx replies are returned as *apiError without
// counting against the breaker.
func (c *Client) do(method, path string, body, v any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return nil, &apiError{Status: resp.StatusCode, Msg: errorMessage(data)}
		}
		return reply{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		return err
	}

	r := out.(reply)
	if r.status >= 400 {
		return &apiError{Status: r.status, Msg: errorMessage(r.body)}
	}
	if v != nil && len(r.body) > 0 {
		return json.Unmarshal(r.body, v)
	}
	return nil
}

func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *Client) post(path string, body, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

// errorMessage extracts {"error": "..."} from a reply, falling back to the raw text.
func errorMessage(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
