package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openarch-dev/archbase/internal/chunkvfs"
	"github.com/openarch-dev/archbase/internal/config"
	"github.com/openarch-dev/archbase/internal/directdl"
	"github.com/openarch-dev/archbase/internal/gateway"
	"github.com/openarch-dev/archbase/internal/records"
)

var (
	configPath  string
	manifestURL string
	baseURL     string
	databaseURL string
	cacheDir    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an archbase.hcl config file")
	rootCmd.PersistentFlags().StringVar(&manifestURL, "manifest-url", "", "URL of the chunk manifest (enables chunked access)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL the manifest's database file resolves against")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "Full database URL for the direct fallback")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Directory for full downloads (direct path)")
}

var rootCmd = &cobra.Command{
	Use:   "archbase",
	Short: "Archbase: query a remote architecture catalogue without downloading it",
	Long: `Archbase reads a published SQLite catalogue of architecture and architect
records over HTTP. It fetches byte ranges on demand through a chunk manifest,
falling back to a one-time full download when the host cannot serve ranges.`,
	SilenceUsage: true,
}

// loadConfig merges defaults, the optional config file, and flags, in that
// order of increasing precedence.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if manifestURL != "" {
		cfg.ManifestURL = manifestURL
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if cfg.BaseURL == "" && cfg.ManifestURL != "" {
		if i := strings.LastIndex(cfg.ManifestURL, "/"); i > 0 {
			cfg.BaseURL = cfg.ManifestURL[:i]
		}
	}
	return cfg, nil
}

// newGateway wires the two loaders per the config. Either path may be
// absent; the gateway reports ErrNoBackend when both are.
func newGateway(cfg *config.Config) *gateway.Gateway {
	var chunked gateway.Opener
	if cfg.ManifestURL != "" {
		murl, burl, entries := cfg.ManifestURL, cfg.BaseURL, cfg.ChunkCacheEntries
		chunked = func(ctx context.Context) (*gateway.Backend, error) {
			db, _, err := chunkvfs.Open(ctx, murl, burl, chunkvfs.Options{CacheEntries: entries})
			if err != nil {
				return nil, err
			}
			return gateway.NewBackend(gateway.BackendChunked, db, nil), nil
		}
	}

	var direct gateway.Opener
	if cfg.DatabaseURL != "" || cfg.ManifestURL != "" {
		murl, burl, dbURL, dir := cfg.ManifestURL, cfg.BaseURL, cfg.DatabaseURL, cfg.CacheDir
		direct = func(ctx context.Context) (*gateway.Backend, error) {
			url := dbURL
			if url == "" {
				// No explicit database URL: learn the file name from the manifest.
				m, err := chunkvfs.FetchManifest(ctx, nil, murl)
				if err != nil {
					return nil, err
				}
				url = strings.TrimRight(burl, "/") + "/" + m.DatabaseFileName
			}
			db, path, err := directdl.Open(ctx, nil, url, dir)
			if err != nil {
				return nil, err
			}
			cleanup := func() error { return os.Remove(path) }
			return gateway.NewBackend(gateway.BackendDirect, db, cleanup), nil
		}
	}

	return gateway.New(chunked, direct)
}

// newService builds the full stack for query commands.
func newService() (*records.Service, *gateway.Gateway, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	gw := newGateway(cfg)
	return records.New(gw), gw, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
