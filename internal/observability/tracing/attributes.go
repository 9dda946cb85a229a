package tracing

import (
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const redacted = "[redacted]"

// Member contact and identity data never leaves the process in spans. Keys
// match on any of these fragments.
var sensitiveFragments = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"phone",
	"national_id",
	"email",
}

// SafeAttributes keeps every key but replaces the value of sensitive ones, so
// a span still shows that the field was present.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			out[i] = attribute.String(string(attr.Key), redacted)
			continue
		}
		out[i] = attr
	}
	return out
}

// SafeError keeps only the error's type. Classified errors keep their code,
// which carries no member data.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return fmt.Errorf("%T(%s)", err, coded.ErrorCode())
	}
	return fmt.Errorf("%T", err)
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}
