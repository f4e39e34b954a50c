package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks personal data in log attributes. Participants identify
// themselves by email and every proxied request carries a client address,
// so both are masked by default.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name    string
	regex   *regexp.Regexp
	replace func(string) string
}

// Pattern names.
const (
	PatternEmail       = "email"
	PatternIPv4        = "ipv4"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

var defaultPatterns = []redactPattern{
	{
		name:    PatternBearerToken,
		regex:   regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
		replace: func(string) string { return "Bearer ***" },
	},
	{
		name:    PatternPassword,
		regex:   regexp.MustCompile(`(?i)(password|passwd|pwd)[:=]\s*[^\s&]+`),
		replace: func(m string) string { return m[:strings.IndexAny(m, ":=")] + "=***" },
	},
	{
		name:    PatternEmail,
		regex:   regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		replace: RedactEmail,
	},
	{
		name:    PatternIPv4,
		regex:   regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		replace: RedactIPv4,
	},
}

// sensitiveKeys are attribute keys whose values are masked outright.
var sensitiveKeys = []string{"password", "secret", "token", "authorization", "cookie"}

// NewRedactor creates a redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// RedactString masks every match of the redactor's patterns in value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllStringFunc(value, p.replace)
	}
	return value
}

// RedactAttr is used as an slog ReplaceAttr hook.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	if at == 0 {
		return "***" + email[at:]
	}
	return email[:1] + "***" + email[at:]
}

// RedactIPv4 keeps only the first octet.
func RedactIPv4(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return parts[0] + ".*.*.*"
}
