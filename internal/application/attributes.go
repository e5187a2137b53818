package application

import (
	"regexp"
	"strings"
)

// RedactedValue replaces PII custom-attribute values.
const RedactedValue = "[redacted]"

// piiKeyPattern matches custom-attribute keys that hold personally
// identifying data.
var piiKeyPattern = regexp.MustCompile(`(?i)(name|email|phone|address|birth|dob|ssn|social|passport|license)`)

// preservedKeyPattern matches commerce record keys kept during limited
// redaction (order, transaction, payment, invoice, tax records a
// merchant may be legally required to retain).
var preservedKeyPattern = regexp.MustCompile(`(?i)(order|transaction|payment|invoice|tax|receipt|refund)`)

var systemKeyPrefixes = []string{"system_", "internal_", "app_"}

var systemKeys = map[string]bool{
	"created_by": true,
	"updated_by": true,
	"source":     true,
	"channel":    true,
}

// sensitiveExportKeyPattern matches keys removed outright from data
// exports. This is a deny-list for credential-looking material,
// distinct from the PII masking used during redaction.
var sensitiveExportKeyPattern = regexp.MustCompile(`(?i)(password|token|secret|key|auth|credential)`)

// IsPIIAttribute reports whether key holds personally identifying data.
func IsPIIAttribute(key string) bool {
	return piiKeyPattern.MatchString(key)
}

// IsSystemAttribute reports whether key is platform bookkeeping that
// survives redaction verbatim.
func IsSystemAttribute(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range systemKeyPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return systemKeys[lower]
}

// IsPreservedAttribute reports whether key holds commerce records kept
// under limited redaction.
func IsPreservedAttribute(key string) bool {
	return preservedKeyPattern.MatchString(key)
}

// IsSensitiveExportKey reports whether key must be dropped from data
// exports entirely.
func IsSensitiveExportKey(key string) bool {
	return sensitiveExportKeyPattern.MatchString(key)
}

// truthy interprets the loose flag encodings that appear in custom
// attribute maps.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		lower := strings.ToLower(t)
		return lower == "true" || lower == "yes" || lower == "1"
	default:
		return false
	}
}
