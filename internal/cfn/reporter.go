package cfn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Collaborne/custom-cloudformation-resources/internal/logging"
)

// maxResponseBody is the platform limit on the callback body. A larger body
// is still delivered; CloudFormation fails the resource on its own side.
const maxResponseBody = 4096

const defaultFailedReason = "resource operation failed, see handler logs for details"

// Reporter delivers terminal status documents to the callback URL of a
// request. Delivery is a single HTTP PUT with no retry; a transport error or
// an error response status is surfaced to the caller as a delivery failure.
type Reporter struct {
	client *http.Client
}

// NewReporter returns a Reporter using the given HTTP client, or a default
// client with a 30s timeout when nil.
func NewReporter(client *http.Client) *Reporter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Reporter{client: client}
}

// Send serializes the status document and PUTs it to the request's callback
// URL. When status is Failed and no reason is given, a generic reason is
// substituted.
func (r *Reporter) Send(ctx context.Context, req *Request, status Status, reason string, physicalID string, data map[string]any) error {
	if status == StatusFailed && reason == "" {
		reason = defaultFailedReason
	}
	body, err := json.Marshal(&Response{
		Status:             status,
		Reason:             reason,
		PhysicalResourceID: physicalID,
		StackID:            req.StackID,
		RequestID:          req.RequestID,
		LogicalResourceID:  req.LogicalResourceID,
		Data:               data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if len(body) >= maxResponseBody {
		// The delivery cannot be resized after the fact, so proceed anyway.
		logging.Warn("response body exceeds platform limit",
			"size", len(body), "limit", maxResponseBody, "body", string(body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, req.ResponseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	// The pre-signed callback URL rejects bodies signed with a content type.
	httpReq.Header.Set("Content-Type", "")
	httpReq.ContentLength = int64(len(body))

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to deliver response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("callback returned status %d: %s", resp.StatusCode, msg)
	}

	logging.Debug("delivered response",
		"status", status, "physicalResourceId", physicalID, "requestId", req.RequestID)
	return nil
}
