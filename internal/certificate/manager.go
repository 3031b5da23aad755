// Package certificate implements the certificate resource: issuance with DNS
// or email validation, in-place updates versus replacement, and deletion
// that deliberately leaves DNS validation records behind.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
	"github.com/Collaborne/custom-cloudformation-resources/internal/config"
	"github.com/Collaborne/custom-cloudformation-resources/internal/lifecycle"
	"github.com/Collaborne/custom-cloudformation-resources/internal/logging"
)

// ResourceType is the CloudFormation resource type this handler serves.
const ResourceType = "Custom::Certificate"

// validationRecordTTL balances propagation speed against revocation agility.
const validationRecordTTL = int64(300)

const defaultPollInterval = 5 * time.Second

// validationWaitTimeout bounds the final blocking wait for issuance.
const validationWaitTimeout = 30 * time.Minute

// ErrCertificateNotFound marks a lookup miss during Update or Delete.
var ErrCertificateNotFound = errors.New("certificate not found")

// ACMAPI is the subset of the ACM client the manager uses.
type ACMAPI interface {
	RequestCertificate(ctx context.Context, params *acm.RequestCertificateInput, optFns ...func(*acm.Options)) (*acm.RequestCertificateOutput, error)
	DescribeCertificate(ctx context.Context, params *acm.DescribeCertificateInput, optFns ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error)
	ListCertificates(ctx context.Context, params *acm.ListCertificatesInput, optFns ...func(*acm.Options)) (*acm.ListCertificatesOutput, error)
	DeleteCertificate(ctx context.Context, params *acm.DeleteCertificateInput, optFns ...func(*acm.Options)) (*acm.DeleteCertificateOutput, error)
	UpdateCertificateOptions(ctx context.Context, params *acm.UpdateCertificateOptionsInput, optFns ...func(*acm.Options)) (*acm.UpdateCertificateOptionsOutput, error)
	ListTagsForCertificate(ctx context.Context, params *acm.ListTagsForCertificateInput, optFns ...func(*acm.Options)) (*acm.ListTagsForCertificateOutput, error)
	AddTagsToCertificate(ctx context.Context, params *acm.AddTagsToCertificateInput, optFns ...func(*acm.Options)) (*acm.AddTagsToCertificateOutput, error)
	RemoveTagsFromCertificate(ctx context.Context, params *acm.RemoveTagsFromCertificateInput, optFns ...func(*acm.Options)) (*acm.RemoveTagsFromCertificateOutput, error)
}

// Route53API is the subset of the Route53 client the manager uses.
type Route53API interface {
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

// Manager is the certificate resource handler.
type Manager struct {
	acm          ACMAPI
	dns          Route53API
	pollInterval time.Duration
	now          func() time.Time

	// waitValidated blocks until the certificate is issued. Overridable in
	// tests; the default uses the ACM CertificateValidated waiter.
	waitValidated func(ctx context.Context, arn string) error
}

// New returns a Manager over the given clients. The poll interval comes from
// cfg, falling back to the 5s default.
func New(acmClient ACMAPI, dnsClient Route53API, cfg config.Config) *Manager {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	m := &Manager{
		acm:          acmClient,
		dns:          dnsClient,
		pollInterval: interval,
		now:          time.Now,
	}
	m.waitValidated = func(ctx context.Context, arn string) error {
		waiter := acm.NewCertificateValidatedWaiter(acmClient)
		return waiter.Wait(ctx, &acm.DescribeCertificateInput{
			CertificateArn: aws.String(arn),
		}, validationWaitTimeout)
	}
	return m
}

// Create requests a new certificate, publishes any DNS validation records,
// and blocks until the certificate service confirms validation, so callers
// never receive a not-yet-valid certificate.
func (m *Manager) Create(ctx context.Context, req *cfn.Request) (*lifecycle.Outcome, error) {
	props, err := decodeProperties(req.ResourceProperties)
	if err != nil {
		return nil, err
	}
	arn, err := m.provision(ctx, req, props)
	if err != nil {
		return nil, err
	}
	physicalID := req.LogicalResourceID + "/" + CertificateID(arn)
	return lifecycle.Done(physicalID, certificateData(arn, props.DomainName)), nil
}

// Update dispatches on the shape of the change set: a lone transparency
// logging change updates in place, a lone tag change reconciles the tag set,
// anything else provisions a replacement certificate. The old certificate is
// left for the orchestrator's follow-up Delete of the old physical id.
func (m *Manager) Update(ctx context.Context, req *cfn.Request) (*lifecycle.Outcome, error) {
	props, err := decodeProperties(req.ResourceProperties)
	if err != nil {
		return nil, err
	}
	changed := changedKeys(req.ResourceProperties, req.OldResourceProperties)

	switch {
	case onlyChange(changed, "CertificateTransparencyLoggingPreference"):
		arn, err := m.findCertificateARN(ctx, req.PhysicalResourceID, props.DomainName)
		if err != nil {
			return nil, err
		}
		_, err = m.acm.UpdateCertificateOptions(ctx, &acm.UpdateCertificateOptionsInput{
			CertificateArn: aws.String(arn),
			Options: &acmtypes.CertificateOptions{
				CertificateTransparencyLoggingPreference: acmtypes.CertificateTransparencyLoggingPreference(props.CertificateTransparencyLoggingPreference),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update certificate options for %s: %w", arn, err)
		}
		return lifecycle.Done(req.PhysicalResourceID, certificateData(arn, props.DomainName)), nil

	case onlyChange(changed, "Tags"):
		arn, err := m.findCertificateARN(ctx, req.PhysicalResourceID, props.DomainName)
		if err != nil {
			return nil, err
		}
		if err := m.reconcileTags(ctx, arn, props.Tags); err != nil {
			return nil, err
		}
		return lifecycle.Done(req.PhysicalResourceID, certificateData(arn, props.DomainName)), nil

	default:
		logging.Info("replacing certificate",
			"physicalResourceId", req.PhysicalResourceID, "changed", changed)
		arn, err := m.provision(ctx, req, props)
		if err != nil {
			return nil, err
		}
		physicalID := ReplacePhysicalID(req.PhysicalResourceID, CertificateID(arn))
		return lifecycle.Done(physicalID, certificateData(arn, props.DomainName)), nil
	}
}

// Delete removes the certificate record only. DNS validation records stay in
// place so a subsequent re-create can reuse them.
func (m *Manager) Delete(ctx context.Context, req *cfn.Request) (*lifecycle.Outcome, error) {
	var domain string
	if props, err := decodeProperties(req.ResourceProperties); err == nil {
		domain = props.DomainName
	}
	arn, err := m.findCertificateARN(ctx, req.PhysicalResourceID, domain)
	if err != nil {
		return nil, err
	}
	if _, err := m.acm.DeleteCertificate(ctx, &acm.DeleteCertificateInput{
		CertificateArn: aws.String(arn),
	}); err != nil {
		return nil, fmt.Errorf("failed to delete certificate %s: %w", arn, err)
	}
	return lifecycle.Done(req.PhysicalResourceID, nil), nil
}

func (m *Manager) provision(ctx context.Context, req *cfn.Request, props *Properties) (string, error) {
	dnsOpts, emailOpts, err := splitValidationOptions(props)
	if err != nil {
		return "", err
	}

	input := &acm.RequestCertificateInput{
		DomainName:       aws.String(props.DomainName),
		IdempotencyToken: aws.String(idempotencyToken(req.LogicalResourceID, m.now())),
	}
	if len(props.SubjectAlternativeNames) > 0 {
		input.SubjectAlternativeNames = props.SubjectAlternativeNames
	}
	if len(dnsOpts) > 0 {
		input.ValidationMethod = acmtypes.ValidationMethodDns
	} else {
		input.ValidationMethod = acmtypes.ValidationMethodEmail
	}
	// The certificate API accepts only the email-style options natively; DNS
	// options are realized below through record upserts.
	for _, opt := range emailOpts {
		input.DomainValidationOptions = append(input.DomainValidationOptions, acmtypes.DomainValidationOption{
			DomainName:       aws.String(opt.DomainName),
			ValidationDomain: aws.String(opt.ValidationDomain),
		})
	}
	if pref := props.CertificateTransparencyLoggingPreference; pref != "" {
		input.Options = &acmtypes.CertificateOptions{
			CertificateTransparencyLoggingPreference: acmtypes.CertificateTransparencyLoggingPreference(pref),
		}
	}
	if len(props.Tags) > 0 {
		input.Tags = toACMTags(props.Tags)
	}

	out, err := m.acm.RequestCertificate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to request certificate for %s: %w", props.DomainName, err)
	}
	arn := aws.ToString(out.CertificateArn)

	if len(dnsOpts) > 0 {
		records, err := m.waitForResourceRecords(ctx, arn)
		if err != nil {
			return "", err
		}
		if err := m.upsertValidationRecords(ctx, dnsOpts[0].HostedZoneID, records); err != nil {
			return "", err
		}
	}
	if err := m.waitValidated(ctx, arn); err != nil {
		return "", fmt.Errorf("failed waiting for certificate validation: %w", err)
	}
	return arn, nil
}

// waitForResourceRecords polls the certificate until every DNS validation
// option carries a resource record. Records not yet present are a transient
// condition; a certificate with no DNS validation options at all is not.
func (m *Manager) waitForResourceRecords(ctx context.Context, arn string) ([]acmtypes.ResourceRecord, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	seen := 0
	for {
		out, err := m.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
			CertificateArn: aws.String(arn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe certificate %s: %w", arn, err)
		}

		var records []acmtypes.ResourceRecord
		dnsOptions, pending := 0, 0
		if out.Certificate != nil {
			for _, v := range out.Certificate.DomainValidationOptions {
				if v.ValidationMethod != acmtypes.ValidationMethodDns {
					continue
				}
				dnsOptions++
				if v.ResourceRecord != nil {
					records = append(records, *v.ResourceRecord)
				} else {
					pending++
				}
			}
		}
		if dnsOptions == 0 {
			return nil, fmt.Errorf("certificate %s reports no DNS validation options", arn)
		}
		if pending == 0 {
			return records, nil
		}
		if len(records) > seen {
			logging.Info("validation records appearing",
				"certificateArn", arn, "have", len(records), "pending", pending)
			seen = len(records)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("interrupted while waiting for validation records: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *Manager) upsertValidationRecords(ctx context.Context, zoneID string, records []acmtypes.ResourceRecord) error {
	changes := make([]r53types.Change, 0, len(records))
	for _, record := range records {
		changes = append(changes, r53types.Change{
			Action: r53types.ChangeActionUpsert,
			ResourceRecordSet: &r53types.ResourceRecordSet{
				Name: record.Name,
				Type: r53types.RRType(record.Type),
				TTL:  aws.Int64(validationRecordTTL),
				ResourceRecords: []r53types.ResourceRecord{
					{Value: record.Value},
				},
			},
		})
	}
	_, err := m.dns.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Changes: changes,
			Comment: aws.String("certificate validation records"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert validation records in zone %s: %w", zoneID, err)
	}
	return nil
}

func (m *Manager) reconcileTags(ctx context.Context, arn string, desired []Tag) error {
	current, err := m.acm.ListTagsForCertificate(ctx, &acm.ListTagsForCertificateInput{
		CertificateArn: aws.String(arn),
	})
	if err != nil {
		return fmt.Errorf("failed to list tags for %s: %w", arn, err)
	}
	add, remove := diffTags(fromACMTags(current.Tags), desired)
	if len(remove) > 0 {
		if _, err := m.acm.RemoveTagsFromCertificate(ctx, &acm.RemoveTagsFromCertificateInput{
			CertificateArn: aws.String(arn),
			Tags:           toACMTags(remove),
		}); err != nil {
			return fmt.Errorf("failed to remove tags from %s: %w", arn, err)
		}
	}
	if len(add) > 0 {
		if _, err := m.acm.AddTagsToCertificate(ctx, &acm.AddTagsToCertificateInput{
			CertificateArn: aws.String(arn),
			Tags:           toACMTags(add),
		}); err != nil {
			return fmt.Errorf("failed to add tags to %s: %w", arn, err)
		}
	}
	return nil
}

// findCertificateARN pages through the full certificate listing and matches
// the certificate-id suffix of the physical id, falling back to the first
// domain-name match. The scan is O(certificates in the account), which is
// acceptable while certificate populations stay small.
func (m *Manager) findCertificateARN(ctx context.Context, physicalID, domain string) (string, error) {
	certID := CertificateID(physicalID)

	var domainMatch string
	var next *string
	for {
		out, err := m.acm.ListCertificates(ctx, &acm.ListCertificatesInput{NextToken: next})
		if err != nil {
			return "", fmt.Errorf("failed to list certificates: %w", err)
		}
		for _, summary := range out.CertificateSummaryList {
			arn := aws.ToString(summary.CertificateArn)
			if CertificateID(arn) == certID {
				return arn, nil
			}
			if domainMatch == "" && domain != "" && aws.ToString(summary.DomainName) == domain {
				domainMatch = arn
			}
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	if domainMatch != "" {
		// Ambiguous when several certificates share the domain; the first
		// match wins.
		logging.Warn("no certificate matches the physical id, falling back to domain-name match",
			"physicalResourceId", physicalID, "domain", domain, "certificateArn", domainMatch)
		return domainMatch, nil
	}
	return "", fmt.Errorf("%w: physical id %q, domain %q", ErrCertificateNotFound, physicalID, domain)
}

func onlyChange(changed []string, key string) bool {
	return len(changed) == 1 && changed[0] == key
}

func certificateData(arn, domain string) map[string]any {
	return map[string]any{
		"Arn":        arn,
		"DomainName": domain,
	}
}

func toACMTags(tags []Tag) []acmtypes.Tag {
	out := make([]acmtypes.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, acmtypes.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

func fromACMTags(tags []acmtypes.Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}
