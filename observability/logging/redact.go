package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the placeholder substituted for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Settlement log attributes safe to emit in clear. Anything else, in
// particular raw payloads and signatures, gets masked.
var redactionAllowlist = map[string]struct{}{
	"service":      {},
	"env":          {},
	"message":      {},
	"severity":     {},
	"timestamp":    {},
	"error":        {},
	"reason":       {},
	"adapter":      {},
	"buyer":        {},
	"beneficiary":  {},
	"collector":    {},
	"collection":   {},
	"tokenId":      {},
	"currency":     {},
	"price":        {},
	"borrowed":     {},
	"premium":      {},
	"fee":          {},
	"feeBps":       {},
	"contribution": {},
	"nonce":        {},
}

// IsAllowlisted reports whether the key is exempt from redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.TrimSpace(key)]
	return ok
}

// RedactionAllowlist returns a sorted copy of the clear-text keys. Tests use
// it to pin the masking surface.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Redact masks any attribute outside the allowlist.
func Redact(attr slog.Attr) slog.Attr {
	if IsAllowlisted(attr.Key) {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
