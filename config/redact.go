package config

import "strings"

// Redactor scrubs configured keys out of a flat string map before it
// reaches a log line. The API's request-logging middleware is its only
// user; it is not consulted for LLM prompts or responses.
type Redactor struct {
	keys map[string]bool
}

// NewRedactor builds a Redactor over keys (case-insensitive).
func NewRedactor(keys []string) Redactor {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k)] = true
	}
	return Redactor{keys: m}
}

// Redact returns a copy of fields with every configured key's value
// replaced by "[REDACTED]".
func (r Redactor) Redact(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if r.keys[strings.ToLower(k)] {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}
