package chunkvfs

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ohler55/ojg/oj"
	"github.com/psanford/sqlite3vfs"

	"github.com/openarch-dev/archbase/api"
)

// Options tune the chunked open path. The zero value is usable.
type Options struct {
	// Client used for all HTTP traffic; nil means http.DefaultClient.
	Client *http.Client
	// CacheEntries bounds the chunk LRU; <= 0 selects the default.
	CacheEntries int
}

// vfsSerial disambiguates VFS registrations. SQLite VFS names are global to
// the process and cannot be unregistered through this API, so each open gets
// a fresh name.
var vfsSerial atomic.Int64

// FetchManifest fetches and parses the chunk manifest. This doubles as the
// reachability probe: a non-2xx status means the chunked deployment is
// absent or broken and the caller should fall back.
func FetchManifest(ctx context.Context, client *http.Client, manifestURL string) (*api.Manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build manifest request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }() // safe to ignore

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrManifestUnreachable, resp.StatusCode, manifestURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest body: %w", err)
	}

	var m api.Manifest
	if err := oj.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadManifest, err)
	}
	if m.DatabaseFileName == "" || m.ChunkSizeBytes <= 0 || m.TotalSizeBytes <= 0 {
		return nil, fmt.Errorf("%w: %+v", ErrBadManifest, m)
	}
	if want := (m.TotalSizeBytes + m.ChunkSizeBytes - 1) / m.ChunkSizeBytes; m.ChunkCount != want {
		return nil, fmt.Errorf("%w: chunkCount %d, expected %d", ErrBadManifest, m.ChunkCount, want)
	}
	return &m, nil
}

// probeRanges issues a one-byte range GET against the database URL. A host
// that answers 200 instead of 206 would make the engine download everything
// through the VFS one ignored Range header at a time — treat it as broken.
func probeRanges(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build range probe: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("range probe %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }() // safe to ignore

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: probe got status %d", ErrRangeNotSupported, resp.StatusCode)
	}
	return nil
}

// Open constructs the chunked backend: fetch + validate the manifest, verify
// the host honors range requests, register a VFS over a range reader, and
// open the engine through it. Every failure propagates so the gateway can
// fall back to the direct path.
func Open(ctx context.Context, manifestURL, baseURL string, opts Options) (*sql.DB, *RangeReader, error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	m, err := FetchManifest(ctx, client, manifestURL)
	if err != nil {
		return nil, nil, err
	}

	dbURL := strings.TrimRight(baseURL, "/") + "/" + m.DatabaseFileName
	if err := probeRanges(ctx, client, dbURL); err != nil {
		return nil, nil, err
	}

	reader, err := NewRangeReader(client, dbURL, m.TotalSizeBytes, m.ChunkSizeBytes, opts.CacheEntries)
	if err != nil {
		return nil, nil, err
	}

	vfsName := fmt.Sprintf("archbase-range-%d", vfsSerial.Add(1))
	if err := sqlite3vfs.RegisterVFS(vfsName, &rangeVFS{reader: reader}); err != nil {
		return nil, nil, fmt.Errorf("register vfs %s: %w", vfsName, err)
	}

	dsn := fmt.Sprintf("file:%s?vfs=%s&mode=ro&immutable=1", m.DatabaseFileName, vfsName)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open chunked engine: %w", err)
	}
	// One connection: every extra connection re-reads the schema through the
	// network-backed VFS for no benefit on a read-only dataset.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() // ignore error
		return nil, nil, fmt.Errorf("chunked engine construction: %w", err)
	}
	return db, reader, nil
}
