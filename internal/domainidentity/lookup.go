// Package domainidentity implements the domain-attribute lookup resource: it
// reads one SES email identity and returns its attributes. It provisions
// nothing, so Delete has nothing to undo.
package domainidentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
	"github.com/Collaborne/custom-cloudformation-resources/internal/lifecycle"
)

// ResourceType is the CloudFormation resource type this handler serves.
const ResourceType = "Custom::DomainIdentity"

// SESAPI is the subset of the SES v2 client the lookup uses.
type SESAPI interface {
	GetEmailIdentity(ctx context.Context, params *sesv2.GetEmailIdentityInput, optFns ...func(*sesv2.Options)) (*sesv2.GetEmailIdentityOutput, error)
}

// Lookup is the domain-attribute resource handler.
type Lookup struct {
	ses SESAPI
}

func New(ses SESAPI) *Lookup {
	return &Lookup{ses: ses}
}

func (l *Lookup) Create(ctx context.Context, req *cfn.Request) (*lifecycle.Outcome, error) {
	return l.describe(ctx, req)
}

func (l *Lookup) Update(ctx context.Context, req *cfn.Request) (*lifecycle.Outcome, error) {
	return l.describe(ctx, req)
}

// Delete is a no-op: the lookup never created anything.
func (l *Lookup) Delete(_ context.Context, req *cfn.Request) (*lifecycle.Outcome, error) {
	return lifecycle.Done(req.PhysicalResourceID, nil), nil
}

func (l *Lookup) describe(ctx context.Context, req *cfn.Request) (*lifecycle.Outcome, error) {
	domain, _ := req.ResourceProperties["DomainName"].(string)
	if domain == "" {
		return nil, errors.New("DomainName is required")
	}

	out, err := l.ses.GetEmailIdentity(ctx, &sesv2.GetEmailIdentityInput{
		EmailIdentity: aws.String(domain),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get email identity %s: %w", domain, err)
	}

	data := map[string]any{
		"IdentityType":             string(out.IdentityType),
		"VerifiedForSendingStatus": out.VerifiedForSendingStatus,
	}
	if out.DkimAttributes != nil {
		data["DkimStatus"] = string(out.DkimAttributes.Status)
		data["DkimTokens"] = out.DkimAttributes.Tokens
	}
	return lifecycle.Done(domain, data), nil
}
