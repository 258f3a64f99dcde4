package runtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/utils"
)

var allowedHTTPMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// httpRequestNodeType issues an outbound HTTP request.
//
// Config:
//
//	url (string, required) - request URL, supports {{variable}} placeholders
//	method (string, required) - one of get/post/put/patch/delete, any case
//	headers (map, optional) - request headers; values support placeholders
//	query_params (map, optional) - query string parameters
//	body (string, optional) - request body, supports {{variable}} placeholders
//
// A response of any status code is a successful execution; only transport
// failures fail the node.
type httpRequestNodeType struct {
	client *utils.HTTPClient
}

// NewHTTPRequestNodeType creates the http_request node type.
func NewHTTPRequestNodeType(timeout time.Duration) registry.NodeType {
	return &httpRequestNodeType{
		client: utils.NewHTTPClient(timeout),
	}
}

func (h *httpRequestNodeType) Type() string {
	return string(models.NodeTypeHTTPRequest)
}

func (h *httpRequestNodeType) ValidateConfig(node *models.Node) error {
	url, ok := configString(node, "url")
	if !ok || url == "" {
		return fmt.Errorf("http_request node requires a 'url' string")
	}

	method, ok := configString(node, "method")
	if !ok || method == "" {
		return fmt.Errorf("http_request node requires a 'method' string")
	}
	if !allowedHTTPMethods[strings.ToUpper(method)] {
		return fmt.Errorf("http_request node has unsupported method %q", method)
	}

	if _, err := configStringMap(node, "headers"); err != nil {
		return fmt.Errorf("http_request node: %w", err)
	}
	if _, err := configStringMap(node, "query_params"); err != nil {
		return fmt.Errorf("http_request node: %w", err)
	}

	return nil
}

func (h *httpRequestNodeType) Execute(ctx context.Context, node *models.Node, inputs map[string]interface{}, execCtx registry.ExecutionContext) (map[string]interface{}, map[string]interface{}, error) {
	rawURL, _ := configString(node, "url")
	url, err := utils.ProcessTemplate(rawURL, inputs)
	if err != nil {
		return nil, nil, queue.Permanent(fmt.Errorf("url template failed: %w", err))
	}

	rawMethod, _ := configString(node, "method")
	method := strings.ToUpper(rawMethod)

	rawHeaders, _ := configStringMap(node, "headers")
	headers := make(map[string]string, len(rawHeaders))
	for key, value := range rawHeaders {
		rendered, err := utils.ProcessTemplate(value, inputs)
		if err != nil {
			return nil, nil, queue.Permanent(fmt.Errorf("header %q template failed: %w", key, err))
		}
		headers[key] = rendered
	}

	queryParams, _ := configStringMap(node, "query_params")

	var body interface{}
	if rawBody, ok := configString(node, "body"); ok && rawBody != "" {
		rendered, err := utils.ProcessTemplate(rawBody, inputs)
		if err != nil {
			return nil, nil, queue.Permanent(fmt.Errorf("body template failed: %w", err))
		}
		body = rendered
	}

	resp, err := h.client.Do(ctx, &utils.HTTPRequest{
		URL:         url,
		Method:      method,
		Headers:     headers,
		QueryParams: queryParams,
		Body:        body,
	})
	if err != nil {
		// Transport failures are transient from the node's point of view.
		return nil, nil, fmt.Errorf("http request failed: %w", err)
	}

	respHeaders := make(map[string]interface{}, len(resp.Headers))
	for key, values := range resp.Headers {
		respHeaders[key] = strings.Join(values, ", ")
	}

	output := map[string]interface{}{
		"status":  resp.StatusCode,
		"headers": respHeaders,
		"body":    resp.Body,
	}
	metadata := map[string]interface{}{
		"url":         url,
		"method":      method,
		"status_code": resp.StatusCode,
	}
	if timing, ok := resp.Metadata["timing_ms"]; ok {
		metadata["duration_ms"] = timing
	}

	return output, metadata, nil
}
