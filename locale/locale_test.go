package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Get(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)

	assert.Equal(t, "alice's channel", p.Get("en", "channel:default_name", "alice"))
	assert.Equal(t, "canal de alice", p.Get("es", "channel:default_name", "alice"))
}

func TestProvider_FallbackBehavior(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)

	// Unknown tag falls back to English
	assert.Equal(t, "alice's channel", p.Get("zz", "channel:default_name", "alice"))

	// Region subtags resolve to the primary language
	assert.Equal(t, "canal de alice", p.Get("es-MX", "channel:default_name", "alice"))

	// Unknown keys render as the key, never empty
	assert.Equal(t, "nope:missing", p.Get("en", "nope:missing"))
}

func TestProvider_Tags(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)
	assert.Contains(t, p.Tags(), "en")
	assert.Contains(t, p.Tags(), "es")
}
