package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVs_RedactsCredentialKeys(t *testing.T) {
	out := sanitizeKVs([]interface{}{"user_id", 7, "token", "abc.def.ghi", "Authorization", "Bearer x", "dangling"})

	assert.Equal(t, []interface{}{"user_id", 7, "token", "[REDACTED]", "Authorization", "[REDACTED]", "dangling"}, out)
}

func TestNew_DevelopmentAndProduction(t *testing.T) {
	for _, mode := range []string{"development", "prod", ""} {
		l, err := New(mode)
		assert.NoError(t, err, mode)
		assert.NotNil(t, l.With("component", "test"))
	}
}
