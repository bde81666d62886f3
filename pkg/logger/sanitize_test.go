package logger_test

import (
	"testing"

	"github.com/calebmoore/vaultguard/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "u***@*******.com", logger.SanitizedEmail("user@example.com"))
	assert.Equal(t, "[invalid-email]", logger.SanitizedEmail("not-an-email"))
}

func TestSanitizedIdentifier_IPPassesThrough(t *testing.T) {
	assert.Equal(t, "192.168.1.1", logger.SanitizedIdentifier("192.168.1.1", "IP"))
}

func TestSanitizedIdentifier_EmailIsMasked(t *testing.T) {
	masked := logger.SanitizedIdentifier("user@example.com", "USER")

	assert.NotEqual(t, "user@example.com", masked)
	assert.Contains(t, masked, "@")
}

func TestSanitizedIdentifier_OpaqueUserIDPassesThrough(t *testing.T) {
	assert.Equal(t, "a1b2c3", logger.SanitizedIdentifier("a1b2c3", "USER"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, logger.SanitizeQueryString("password=hunter2"))
	assert.True(t, logger.SanitizeQueryString("page=2&token=abc"))
	assert.False(t, logger.SanitizeQueryString("page=2&limit=50"))
}
