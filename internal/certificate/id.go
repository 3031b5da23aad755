package certificate

import "strings"

// CertificateID returns the trailing path segment of a certificate ARN or a
// physical resource id, which is the certificate's own identifier. A value
// without a separator is returned whole.
func CertificateID(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ReplacePhysicalID swaps the certificate-id suffix of oldID for certID.
// Legacy physical ids without a suffix get one appended.
func ReplacePhysicalID(oldID, certID string) string {
	if i := strings.LastIndex(oldID, "/"); i >= 0 {
		return oldID[:i+1] + certID
	}
	return oldID + "/" + certID
}
