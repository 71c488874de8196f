package stripe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/payforge/payforge/pkg/processor"
)

// errorResponse is the JSON error envelope returned by the Stripe API.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
	Param       string `json:"param"`
}

// handleErrorResponse reads a non-200 response and maps it onto the
// processor error taxonomy.
func (c *Client) handleErrorResponse(op string, resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if readErr != nil {
		return processor.Unavailable(op, fmt.Errorf("status %d, unreadable body: %w", resp.StatusCode, readErr))
	}

	var envelope errorResponse
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr != nil {
		return processor.Unavailable(op, fmt.Errorf("status %d, non-JSON body", resp.StatusCode))
	}

	return mapError(op, resp.StatusCode, &envelope.Error)
}

// mapError classifies a Stripe error body.
func mapError(op string, statusCode int, e *errorBody) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return processor.Unavailable(op, fmt.Errorf("rate limited: %s", e.Message))
	case statusCode >= 500:
		return processor.Unavailable(op, fmt.Errorf("server error: %s", e.Message))
	case statusCode == http.StatusNotFound || e.Code == "resource_missing":
		return processor.NotFound(op, e.Message)
	default:
		return processor.Rejected(op, e.Code, e.DeclineCode, e.Message)
	}
}
