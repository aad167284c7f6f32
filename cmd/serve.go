package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/openarch-dev/archbase/internal/gateway"
	"github.com/openarch-dev/archbase/internal/records"
	"github.com/openarch-dev/archbase/internal/server"
)

var (
	serveListen    string
	serveChunkSize int64
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Bind address (overrides config)")
	serveCmd.Flags().Int64Var(&serveChunkSize, "chunk-size", 0, "Chunk size advertised in the manifest")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [database.db]",
	Short: "Host a catalogue: database with range support, manifest, and JSON API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		listen := cfg.Listen
		if serveListen != "" {
			listen = serveListen
		}
		size := cfg.ChunkSizeBytes
		if serveChunkSize > 0 {
			size = serveChunkSize
		}

		// The API queries the local file directly — no loader round-trip for
		// a database we already have on disk.
		gw := gateway.New(nil, func(ctx context.Context) (*gateway.Backend, error) {
			db, err := sql.Open("sqlite", dbPath+"?mode=ro")
			if err != nil {
				return nil, err
			}
			db.SetMaxOpenConns(4)
			return gateway.NewBackend(gateway.BackendDirect, db, nil), nil
		})
		defer func() { _ = gw.Reset() }()

		srv := server.New(records.New(gw), dbPath, size)
		fmt.Printf("Serving %s on %s\n", dbPath, listen)
		return http.ListenAndServe(listen, srv.Handler())
	},
}
