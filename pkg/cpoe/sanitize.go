package cpoe

import "regexp"

// sanitizeRule is one ordered regex-redaction step. Order matters: ARNs
// must be redacted before the 12-digit account-number match, or the
// account ID embedded in an ARN gets partially overwritten first
// (spec.md §4.5).
type sanitizeRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var sanitizeRules = []sanitizeRule{
	{regexp.MustCompile(`arn:aws:[a-zA-Z0-9:_/.\-]+`), "[REDACTED-ARN]"},
	{regexp.MustCompile(`[a-z]{2}-[a-z]+-\d_[A-Za-z0-9]+`), "[REDACTED-POOL]"},
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), "[REDACTED-KEY]"},
	{regexp.MustCompile(`sk-[A-Za-z0-9_\-]{10,}`), "[REDACTED-SECRET]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[REDACTED-IP]"},
	{regexp.MustCompile(`(/Users/[^\s"']+|/home/[^\s"']+|[A-Za-z]:\\[^\s"']+)`), "[REDACTED-PATH]"},
	{regexp.MustCompile(`\b\d{12}\b`), "[REDACTED-ACCOUNT]"},
}

// SanitizeString applies the full redaction chain, in order, to a single
// string value.
func SanitizeString(s string) string {
	for _, rule := range sanitizeRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}

// SanitizeValue recursively sanitizes every string field reachable from v,
// which must be built from maps, slices, and strings (the shape produced
// by json.Unmarshal into interface{}), leaving other scalar types
// untouched. Sanitization is idempotent: SanitizeValue(SanitizeValue(x))
// equals SanitizeValue(x), since redaction tokens contain no characters
// the rules themselves match.
func SanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = SanitizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = SanitizeValue(val)
		}
		return out
	default:
		return v
	}
}
