package log

import (
	"net/url"
	"strings"
)

var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"api_key", "apikey", "api-key", "apisports-key",
	"token", "secret", "authorization", "credential",
}

// SanitizeField masks values whose key looks sensitive and strips credentials
// from URL and DSN style values.
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return sanitizeToken(value)
		}
	}

	if strings.Contains(lowerKey, "url") || strings.Contains(lowerKey, "proxy") {
		return sanitizeURL(value)
	}

	if strings.Contains(lowerKey, "dsn") || strings.Contains(lowerKey, "source") {
		return sanitizeDSN(value)
	}

	return value
}

// sanitizeToken masks token/password values showing only first 4 and last 4 characters
func sanitizeToken(value string) string {
	if len(value) <= 8 {
		if len(value) <= 2 {
			return strings.Repeat("*", len(value))
		}
		return string(value[0]) + strings.Repeat("*", len(value)-2) + string(value[len(value)-1])
	}

	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// sanitizeURL replaces the password in a URL's userinfo.
func sanitizeURL(value string) string {
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return value
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// sanitizeDSN masks the password in a go-sql-driver style DSN (user:pass@tcp(host)/db).
func sanitizeDSN(value string) string {
	at := strings.LastIndex(value, "@")
	if at < 0 {
		return value
	}
	creds := value[:at]
	colon := strings.Index(creds, ":")
	if colon < 0 {
		return value
	}
	return creds[:colon+1] + "*****" + value[at:]
}
