package logger

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskAuthorization(t *testing.T) {
	assert.Equal(t, "Bearer ****1234", MaskAuthorization("Bearer abcdef1234"))
	assert.Equal(t, "****abc", MaskAuthorization("abc"))
}

func TestMaskHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer abcdef1234")
	headers.Set("Cookie", "session=abcdef9876")
	headers.Set("X-Tenant-Id", "42")

	masked := MaskHeaders(headers)
	assert.Equal(t, "Bearer ****1234", masked["Authorization"])
	assert.Equal(t, "****9876", masked["Cookie"])
	assert.Equal(t, "42", masked["X-Tenant-Id"])
}

func TestMaskMetadata(t *testing.T) {
	masked := MaskMetadata(map[string]any{
		"reference": "MPESA-001",
		"api_token": "tok_12345678",
		"nested": map[string]any{
			"password": "hunter22",
			"amount":   10,
		},
	})

	assert.Equal(t, "MPESA-001", masked["reference"])
	assert.Equal(t, "****5678", masked["api_token"])
	nested, ok := masked["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "****er22", nested["password"])
	assert.Equal(t, 10, nested["amount"])
}
