package models

import "strings"

// SanitizeKeySegment replaces the ':' delimiter in a key segment so client
// controlled values (forwarded IPs, IPv6 addresses) stay inside their segment.
//
// Example: "2001:db8::1" becomes "2001_db8__1".
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
