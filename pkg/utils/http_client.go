package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient provides a reusable HTTP client with common functionality
type HTTPClient struct {
	client *http.Client
}

// HTTPRequest represents an HTTP request
type HTTPRequest struct {
	URL            string                 `json:"url"`
	Method         string                 `json:"method"`
	Headers        map[string]string      `json:"headers,omitempty"`
	QueryParams    map[string]string      `json:"query_params,omitempty"`
	Body           interface{}            `json:"body,omitempty"`
	Timeout        time.Duration          `json:"timeout,omitempty"`
	Auth           map[string]interface{} `json:"auth,omitempty"`
	FollowRedirect bool                   `json:"follow_redirect,omitempty"`
}

// HTTPResponse represents an HTTP response
type HTTPResponse struct {
	StatusCode int                    `json:"status_code"`
	Headers    map[string][]string    `json:"headers"`
	Body       interface{}            `json:"body"`
	RawBody    []byte                 `json:"raw_body,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewHTTPClient creates a new HTTP client with the given default timeout.
// A zero timeout falls back to 30 seconds.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do executes an HTTP request. Per-request timeout and redirect policy are
// applied to a shallow copy of the underlying client so concurrent callers
// never observe each other's settings.
func (c *HTTPClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != nil {
		switch body := req.Body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(body)
		case []byte:
			bodyReader = bytes.NewBuffer(body)
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if len(req.QueryParams) > 0 {
		q := parsedURL.Query()
		for key, value := range req.QueryParams {
			q.Set(key, value)
		}
		parsedURL.RawQuery = q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, parsedURL.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Add(key, value)
	}

	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if req.Auth != nil {
		if username, ok := req.Auth["username"].(string); ok {
			if password, ok := req.Auth["password"].(string); ok {
				httpReq.SetBasicAuth(username, password)
			}
		} else if token, ok := req.Auth["token"].(string); ok {
			httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		} else if apiKey, ok := req.Auth["api_key"].(string); ok {
			if keyName, ok := req.Auth["key_name"].(string); ok {
				httpReq.Header.Set(keyName, apiKey)
			} else {
				httpReq.Header.Set("X-API-Key", apiKey)
			}
		}
	}

	client := *c.client
	if req.Timeout > 0 {
		client.Timeout = req.Timeout
	}
	if !req.FollowRedirect {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	startTime := time.Now()

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	requestDuration := time.Since(startTime)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsedBody interface{}
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.Unmarshal(body, &parsedBody); err != nil {
			parsedBody = string(body)
		}
	} else {
		parsedBody = string(body)
	}

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       parsedBody,
		RawBody:    body,
		Metadata: map[string]interface{}{
			"content_type":   contentType,
			"content_length": resp.ContentLength,
			"request_url":    req.URL,
			"request_method": req.Method,
			"timing_ms":      requestDuration.Milliseconds(),
		},
	}, nil
}
