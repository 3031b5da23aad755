// Package cfn defines the CloudFormation custom resource wire protocol: the
// inbound lifecycle event and the status document delivered back to the
// stack's callback URL.
package cfn

// RequestType identifies the lifecycle operation requested for a resource.
type RequestType string

const (
	RequestCreate RequestType = "Create"
	RequestUpdate RequestType = "Update"
	RequestDelete RequestType = "Delete"
)

// Request is one inbound lifecycle event as delivered by CloudFormation.
// A continuation re-delivery carries the same fields plus the
// ContinuationAttributes produced by the prior partial execution.
type Request struct {
	RequestType            RequestType    `json:"RequestType"`
	ServiceToken           string         `json:"ServiceToken,omitempty"`
	ResponseURL            string         `json:"ResponseURL"`
	StackID                string         `json:"StackId"`
	RequestID              string         `json:"RequestId"`
	LogicalResourceID      string         `json:"LogicalResourceId"`
	PhysicalResourceID     string         `json:"PhysicalResourceId,omitempty"`
	ResourceType           string         `json:"ResourceType"`
	ResourceProperties     map[string]any `json:"ResourceProperties,omitempty"`
	OldResourceProperties  map[string]any `json:"OldResourceProperties,omitempty"`
	ContinuationAttributes map[string]any `json:"ContinuationAttributes,omitempty"`
}

// IsContinuation reports whether this event is a re-delivery of an earlier
// request that suspended with a continuation outcome.
func (r *Request) IsContinuation() bool {
	return len(r.ContinuationAttributes) > 0
}

// StripServiceToken removes the ServiceToken entry CloudFormation injects
// into the property maps before they are handed to a resource handler.
func (r *Request) StripServiceToken() {
	delete(r.ResourceProperties, "ServiceToken")
	delete(r.OldResourceProperties, "ServiceToken")
}
