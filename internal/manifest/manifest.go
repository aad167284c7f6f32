// Package manifest produces the chunk manifest that drives the range-based
// loader. Publishing a catalogue is: build the database, run the chunker
// over it, upload the output directory to any static host that serves
// byte ranges.
//
// Filesystem access goes through billy so tests run against an in-memory
// filesystem.
package manifest

import (
	"fmt"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/ohler55/ojg/oj"

	"github.com/openarch-dev/archbase/api"
)

// FileName is the well-known manifest name under the publish directory.
const FileName = "manifest.json"

// DefaultChunkSize matches one engine page-cache-friendly transfer unit.
const DefaultChunkSize = 1 << 20 // 1 MiB

// Build copies the database at dbPath into outDir and writes manifest.json
// next to it. chunkSize <= 0 selects DefaultChunkSize. The returned manifest
// satisfies ChunkCount == ceil(TotalSizeBytes/ChunkSizeBytes).
func Build(fsys billy.Filesystem, dbPath, outDir string, chunkSize int64) (*api.Manifest, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	info, err := fsys.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("stat database: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("database %s is empty", dbPath)
	}

	if err := fsys.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", outDir, err)
	}

	name := path.Base(dbPath)
	if err := copyFile(fsys, dbPath, path.Join(outDir, name)); err != nil {
		return nil, err
	}

	m := &api.Manifest{
		DatabaseFileName: name,
		ChunkSizeBytes:   chunkSize,
		TotalSizeBytes:   size,
		ChunkCount:       (size + chunkSize - 1) / chunkSize,
	}

	body, err := oj.Marshal(m, 2)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFile(fsys, path.Join(outDir, FileName), body); err != nil {
		return nil, err
	}
	return m, nil
}

func copyFile(fsys billy.Filesystem, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }() // safe to ignore

	out, err := fsys.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close() // ignore error
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}

func writeFile(fsys billy.Filesystem, name string, data []byte) error {
	f, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close() // ignore error
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}
