package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromJson(t *testing.T) {
	cases := []struct {
		json            string
		expectedTypes   []string
		expectedFolding string
		expectedDir     string
		expectedTest    bool
	}{
		{`{}`, nil, FoldBinaryCase, "", false},
		{`{"binary-mime-types": []}`, []string{}, FoldBinaryCase, "", false},
		{`{"binary-mime-types": ["image/*", "font/otf"]}`, []string{"image/*", "font/otf"}, FoldBinaryCase, "", false},
		{`{"header-folding": "multi-value", "socket-dir": "/tmp/sockets"}`, nil, FoldMultiValue, "/tmp/sockets", false},
		{`{"test-mode": true}`, nil, FoldBinaryCase, "", true},
	}

	for _, c := range cases {
		cfg, err := NewConfigFromJson(c.json)
		require.NoError(t, err, c.json)

		assert.Equal(t, c.expectedTypes, cfg.BinaryMimeTypes)
		assert.Equal(t, c.expectedFolding, cfg.HeaderFolding)
		assert.Equal(t, c.expectedDir, cfg.SocketDir)
		assert.Equal(t, c.expectedTest, cfg.TestMode)
	}
}

func TestNewConfigFromJson_errors(t *testing.T) {
	cases := []string{
		`{...`,
		`{"header-folding": "sideways"}`,
		`{"binary-mime-types": "image/*"}`,
	}

	for _, c := range cases {
		_, err := NewConfigFromJson(c)
		assert.Error(t, err, c)
	}
}

func TestConfig_Options(t *testing.T) {
	cfg, err := NewConfigFromJson(`{"binary-mime-types": ["image/*"], "header-folding": "multi-value", "test-mode": true}`)
	require.NoError(t, err)

	opts, err := cfg.Options()
	require.NoError(t, err)

	p := New(okHandler, opts...)
	defer p.Close()

	assert.Equal(t, BinaryMimeTypes{"image/*"}, p.BinaryMimeTypes())
	assert.Equal(t, MultiValueFolder{}, p.folder)
	assert.True(t, p.testMode)
}

func TestConfig_Options_defaults(t *testing.T) {
	cfg, err := NewConfigFromJson(`{}`)
	require.NoError(t, err)

	opts, err := cfg.Options()
	require.NoError(t, err)

	p := New(okHandler, opts...)
	defer p.Close()

	assert.Equal(t, DefaultBinaryMimeTypes(), p.BinaryMimeTypes())
	assert.Equal(t, BinaryCaseFolder{}, p.folder)
	assert.False(t, p.testMode)
}

func TestConfig_Options_unknownFolding(t *testing.T) {
	cfg := &Config{HeaderFolding: "sideways"}

	_, err := cfg.Options()
	assert.EqualError(t, err, "unknown header folding 'sideways'")
}
