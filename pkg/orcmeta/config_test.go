package orcmeta

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, DefaultFooterConcurrency, cfg.FooterConcurrency)
	assert.Equal(t, DefaultMaxStripeFooterSize, cfg.MaxStripeFooterSize)
	assert.False(t, cfg.RangeCache)
	assert.Equal(t, int64(DefaultRangeCacheMaxBytes), cfg.RangeCacheMaxBytes)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			cfg:         Config{FooterConcurrency: 2, MaxStripeFooterSize: 1024, RangeCache: true, RangeCacheMaxBytes: 4096},
			expectError: false,
		},
		{
			name:        "zero concurrency",
			cfg:         Config{FooterConcurrency: 0, MaxStripeFooterSize: 1024},
			expectError: true,
			errorMsg:    "footer concurrency must be positive, got 0",
		},
		{
			name:        "negative footer size",
			cfg:         Config{FooterConcurrency: 1, MaxStripeFooterSize: -1},
			expectError: true,
			errorMsg:    "max stripe footer size must be positive, got -1",
		},
		{
			name:        "range cache without budget",
			cfg:         Config{FooterConcurrency: 1, MaxStripeFooterSize: 1024, RangeCache: true, RangeCacheMaxBytes: -1},
			expectError: true,
			errorMsg:    "range cache max bytes must be positive, got -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, tt.errorMsg, err.Error())
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigFlags(t *testing.T) {
	var cfg Config
	f := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlagsAndApplyDefaults("reader", f)

	assert.Equal(t, DefaultFooterConcurrency, cfg.FooterConcurrency)
	assert.Equal(t, DefaultMaxStripeFooterSize, cfg.MaxStripeFooterSize)

	require.NoError(t, f.Parse([]string{
		"-reader.orc.footer-concurrency=8",
		"-reader.orc.max-stripe-footer-size=4096",
		"-reader.orc.range-cache",
		"-reader.orc.range-cache-max-bytes=1024",
	}))
	assert.Equal(t, 8, cfg.FooterConcurrency)
	assert.Equal(t, 4096, cfg.MaxStripeFooterSize)
	assert.True(t, cfg.RangeCache)
	assert.Equal(t, int64(1024), cfg.RangeCacheMaxBytes)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte("footer_concurrency: 12\nrange_cache: true\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.FooterConcurrency)
	assert.Equal(t, DefaultMaxStripeFooterSize, cfg.MaxStripeFooterSize)
	assert.True(t, cfg.RangeCache)

	_, err = ParseConfig([]byte("footer_concurrency: -3\n"))
	require.ErrorContains(t, err, "footer concurrency must be positive")

	_, err = ParseConfig([]byte("footer_concurrency: [1\n"))
	require.ErrorContains(t, err, "parse orc config")
}
