package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/openarch-dev/archbase/internal/manifest"
)

var chunkSize int64

func init() {
	chunkCmd.Flags().Int64Var(&chunkSize, "chunk-size", manifest.DefaultChunkSize, "Chunk size in bytes")
	rootCmd.AddCommand(chunkCmd)
}

var chunkCmd = &cobra.Command{
	Use:   "chunk [database.db] [outdir]",
	Short: "Prepare a database for publishing: copy it and write its chunk manifest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		outDir, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}

		start := time.Now()
		m, err := manifest.Build(osfs.New("/"), dbPath, outDir, chunkSize)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%d bytes, %d chunks of %d) in %v.\n",
			filepath.Join(outDir, manifest.FileName),
			m.TotalSizeBytes, m.ChunkCount, m.ChunkSizeBytes, time.Since(start))
		return nil
	},
}
