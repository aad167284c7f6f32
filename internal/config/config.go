// Package config loads the optional archbase HCL configuration file.
// Command-line flags override file values; file values override defaults.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the full configuration surface. All fields are optional in the
// file; zero values fall back to defaults at wiring time.
type Config struct {
	// ManifestURL locates the chunk manifest for the chunked path.
	ManifestURL string `hcl:"manifest_url,optional"`
	// BaseURL is the directory URL the manifest's databaseFileName resolves
	// against. Defaults to the manifest URL's directory.
	BaseURL string `hcl:"base_url,optional"`
	// DatabaseURL is the full-file URL for the direct fallback. Defaults to
	// BaseURL + databaseFileName once the manifest is known, but the direct
	// path must work without a manifest, so it can be set explicitly.
	DatabaseURL string `hcl:"database_url,optional"`
	// CacheDir stores full downloads made by the direct path.
	CacheDir string `hcl:"cache_dir,optional"`
	// ChunkCacheEntries bounds the chunked reader's LRU.
	ChunkCacheEntries int `hcl:"chunk_cache_entries,optional"`
	// Listen is the serve command's bind address.
	Listen string `hcl:"listen,optional"`
	// ChunkSizeBytes is the chunk command's chunk size.
	ChunkSizeBytes int64 `hcl:"chunk_size_bytes,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen: ":8713",
	}
}

// Load reads path into a Config. The extension must be .hcl or .json per
// hclsimple's format detection.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
