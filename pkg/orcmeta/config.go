package orcmeta

import (
	"flag"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFooterConcurrency   = 4
	DefaultMaxStripeFooterSize = 16 * 1024 * 1024 // 16MB
	DefaultRangeCacheMaxBytes  = 64 * 1024 * 1024 // 64MB
)

// Config holds tunables for metadata loading and read planning.
type Config struct {
	// FooterConcurrency bounds how many sources fetch stripe footers at once.
	FooterConcurrency int `yaml:"footer_concurrency"`

	// MaxStripeFooterSize rejects stripe footers whose compressed length exceeds it.
	MaxStripeFooterSize int `yaml:"max_stripe_footer_size"`

	// RangeCache wraps every source with a range cache so repeated footer
	// reads are served from memory.
	RangeCache bool `yaml:"range_cache"`

	// RangeCacheMaxBytes bounds the bytes each source's range cache holds.
	RangeCacheMaxBytes int64 `yaml:"range_cache_max_bytes"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.FooterConcurrency, prefixConfig(prefix, "orc.footer-concurrency"), DefaultFooterConcurrency, "Number of sources whose stripe footers are fetched concurrently.")
	f.IntVar(&cfg.MaxStripeFooterSize, prefixConfig(prefix, "orc.max-stripe-footer-size"), DefaultMaxStripeFooterSize, "Largest accepted compressed stripe footer in bytes.")
	f.BoolVar(&cfg.RangeCache, prefixConfig(prefix, "orc.range-cache"), false, "Cache byte ranges read from sources.")
	f.Int64Var(&cfg.RangeCacheMaxBytes, prefixConfig(prefix, "orc.range-cache-max-bytes"), DefaultRangeCacheMaxBytes, "Bytes each source's range cache may hold.")
}

func (cfg *Config) applyDefaults() {
	if cfg.FooterConcurrency == 0 {
		cfg.FooterConcurrency = DefaultFooterConcurrency
	}
	if cfg.MaxStripeFooterSize == 0 {
		cfg.MaxStripeFooterSize = DefaultMaxStripeFooterSize
	}
	if cfg.RangeCacheMaxBytes == 0 {
		cfg.RangeCacheMaxBytes = DefaultRangeCacheMaxBytes
	}
}

// Validate returns an error if the config is unusable.
func (cfg *Config) Validate() error {
	if cfg.FooterConcurrency <= 0 {
		return fmt.Errorf("footer concurrency must be positive, got %d", cfg.FooterConcurrency)
	}
	if cfg.MaxStripeFooterSize <= 0 {
		return fmt.Errorf("max stripe footer size must be positive, got %d", cfg.MaxStripeFooterSize)
	}
	if cfg.RangeCache && cfg.RangeCacheMaxBytes <= 0 {
		return fmt.Errorf("range cache max bytes must be positive, got %d", cfg.RangeCacheMaxBytes)
	}
	return nil
}

// ParseConfig decodes a YAML document into a Config. Omitted fields take
// their defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse orc config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("orc config validation failed: %w", err)
	}
	return cfg, nil
}

func prefixConfig(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
