package logger

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	ipv4Regex  = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3})\.\d{1,3}\b`)
)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") {
		return RedactEmail(val)
	}
	if strings.Contains(key, "ip") || strings.Contains(key, "addr") {
		return RedactIP(val)
	}
	if strings.Contains(key, "user_agent") || key == "ua" {
		return RedactUserAgent(val)
	}
	// Redact any embedded emails or IPs in generic fields
	val = emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	return ipv4Regex.ReplaceAllString(val, "$1.x")
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP masks the host portion of an IP address.
// "203.0.113.42" → "203.0.113.x"; anything unrecognized is fully masked.
func RedactIP(ip string) string {
	if ipv4Regex.MatchString(ip) {
		return ipv4Regex.ReplaceAllString(ip, "$1.x")
	}
	if strings.Contains(ip, ":") { // IPv6: keep the first hextet
		if idx := strings.Index(ip, ":"); idx > 0 {
			return ip[:idx] + "::x"
		}
	}
	if ip == "" {
		return ""
	}
	return "***"
}

// RedactUserAgent keeps only the product token of a user agent string.
// "Mozilla/5.0 (X11; Linux x86_64) ..." → "Mozilla/5.0 ***"
func RedactUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return ""
	}
	if idx := strings.IndexByte(ua, ' '); idx > 0 {
		return ua[:idx] + " ***"
	}
	return ua
}
