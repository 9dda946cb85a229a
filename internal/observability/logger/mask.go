package logger

import (
	"net/http"
	"strings"
)

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
	"cookie",
}

// MaskSecret keeps only the last 4 characters of value.
func MaskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****" + value
	}
	return "****" + value[len(value)-4:]
}

// MaskAuthorization masks bearer tokens, preserving the scheme.
func MaskAuthorization(value string) string {
	parts := strings.Fields(strings.TrimSpace(value))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return "Bearer " + MaskSecret(parts[1])
	}
	return MaskSecret(value)
}

// MaskHeaders returns a flattened copy of headers with sensitive values masked.
func MaskHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		switch {
		case strings.EqualFold(key, "authorization"):
			masked[key] = MaskAuthorization(joined)
		case IsSensitiveKey(key):
			masked[key] = MaskSecret(joined)
		default:
			masked[key] = joined
		}
	}
	return masked
}

// MaskMetadata returns a copy of a member-event or audit metadata map with
// sensitive keys masked, recursing into nested maps.
func MaskMetadata(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		switch typed := value.(type) {
		case map[string]any:
			out[key] = MaskMetadata(typed)
		case string:
			if IsSensitiveKey(key) {
				out[key] = MaskSecret(typed)
			} else {
				out[key] = typed
			}
		default:
			if IsSensitiveKey(key) {
				out[key] = "****"
			} else {
				out[key] = value
			}
		}
	}
	return out
}

// SafeFieldsFromRequest returns request metadata that is safe to log.
func SafeFieldsFromRequest(req *http.Request) map[string]any {
	if req == nil {
		return map[string]any{}
	}
	length := req.ContentLength
	if length < 0 {
		length = 0
	}
	return map[string]any{
		"method":         req.Method,
		"path":           req.URL.Path,
		"content_length": length,
		"headers":        MaskHeaders(req.Header),
	}
}

// IsSensitiveKey reports whether key names a credential-like value.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}
