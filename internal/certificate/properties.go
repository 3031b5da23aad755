package certificate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Properties is the declared schema of the certificate resource.
type Properties struct {
	DomainName                               string             `json:"DomainName"`
	SubjectAlternativeNames                  []string           `json:"SubjectAlternativeNames,omitempty"`
	DomainValidationOptions                  []ValidationOption `json:"DomainValidationOptions,omitempty"`
	Tags                                     []Tag              `json:"Tags,omitempty"`
	CertificateTransparencyLoggingPreference string             `json:"CertificateTransparencyLoggingPreference,omitempty"`
}

// ValidationOption describes one domain-ownership proof. HostedZoneId marks
// a DNS-style option; ValidationDomain an email-style one.
type ValidationOption struct {
	DomainName       string `json:"DomainName"`
	HostedZoneID     string `json:"HostedZoneId,omitempty"`
	ValidationDomain string `json:"ValidationDomain,omitempty"`
}

// IsDNS reports whether the option requires a published DNS record.
func (o ValidationOption) IsDNS() bool {
	return o.HostedZoneID != ""
}

// Tag is one key/value pair on a certificate. Tag sets compare by key+value
// equality.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

func decodeProperties(raw map[string]any) (*Properties, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificate properties: %w", err)
	}
	var props Properties
	if err := json.Unmarshal(buf, &props); err != nil {
		return nil, fmt.Errorf("failed to decode certificate properties: %w", err)
	}
	if props.DomainName == "" {
		return nil, errors.New("DomainName is required")
	}
	return &props, nil
}

// splitValidationOptions partitions the validation options by method. At
// most one DNS-style option is supported, and it must name the resource's
// own domain.
func splitValidationOptions(props *Properties) (dns, email []ValidationOption, err error) {
	for _, opt := range props.DomainValidationOptions {
		if opt.IsDNS() {
			dns = append(dns, opt)
		} else {
			email = append(email, opt)
		}
	}
	if len(dns) > 1 {
		return nil, nil, fmt.Errorf("at most one DNS validation option is supported, got %d", len(dns))
	}
	if len(dns) == 1 && dns[0].DomainName != props.DomainName {
		return nil, nil, fmt.Errorf("DNS validation option names %q, expected the resource domain %q",
			dns[0].DomainName, props.DomainName)
	}
	return dns, email, nil
}

// maxIdempotencyTokenLength is the ACM limit on idempotency tokens.
const maxIdempotencyTokenLength = 32

// idempotencyToken derives a deduplication token from the logical resource
// id and the request time, restricted to the [A-Za-z0-9_] charset ACM
// accepts. The timestamp is kept intact; the logical id is truncated to fit.
func idempotencyToken(logicalID string, now time.Time) string {
	var b strings.Builder
	b.Grow(len(logicalID))
	for _, r := range logicalID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	id := b.String()
	ts := strconv.FormatInt(now.Unix(), 10)
	if max := maxIdempotencyTokenLength - len(ts); len(id) > max {
		id = id[:max]
	}
	return id + ts
}
