package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("configured", "openai_api_key", "sk-123", "jwt_secret", "s3cr3t", "model", "gpt-4o-mini")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["openai_api_key"])
	assert.Equal(t, "[REDACTED]", fields["jwt_secret"])
	assert.Equal(t, "gpt-4o-mini", fields["model"])
}

func TestSanitizeHashesUserID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("user_id", "alice")

	l.Debug("allocated")

	entries := logs.All()
	require.Len(t, entries, 1)
	got, ok := entries[0].ContextMap()["user_id"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "hash:"), "user_id should be hashed, got %q", got)
	assert.NotContains(t, got, "alice")
}

func TestSanitizeOddKeyValues(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}
