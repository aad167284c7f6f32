// Package directdl is the fallback loading path: download the whole
// database file once and open it with the pure-Go engine. Strictly slower
// than chunked access, but it works when range requests or the cgo VFS path
// are broken — that safety net is its entire reason to exist.
package directdl

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	_ "modernc.org/sqlite"
)

// DownloadError reports a non-success HTTP status on the full-file fetch.
type DownloadError struct {
	URL    string
	Status int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: status %d", e.URL, e.Status)
}

// EngineLoadError reports bytes that downloaded fine but are not a database.
type EngineLoadError struct {
	Path string
	Err  error
}

func (e *EngineLoadError) Error() string {
	return fmt.Sprintf("load engine from %s: %v", e.Path, e.Err)
}

func (e *EngineLoadError) Unwrap() error { return e.Err }

// Open downloads the database at url into cacheDir (os.TempDir() when empty)
// and opens it read-only. The returned path is the local copy; callers own
// its lifetime and typically remove it on teardown.
func Open(ctx context.Context, client *http.Client, url, cacheDir string) (*sql.DB, string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("mkdir cache dir: %w", err)
	}

	path, err := download(ctx, client, url, cacheDir)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		_ = os.Remove(path) // best-effort cleanup
		return nil, "", &EngineLoadError{Path: path, Err: err}
	}
	db.SetMaxOpenConns(4)

	// sql.Open is lazy; force a real read so corrupt bytes surface here and
	// not on the first caller query.
	var schemaVersion int
	if err := db.QueryRowContext(ctx, "PRAGMA schema_version").Scan(&schemaVersion); err != nil {
		_ = db.Close()      // ignore error
		_ = os.Remove(path) // best-effort cleanup
		return nil, "", &EngineLoadError{Path: path, Err: err}
	}

	return db, path, nil
}

// download streams the response body to a temp file in dir, renaming into
// place only on success so a partial download never looks like a database.
func download(ctx context.Context, client *http.Client, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }() // safe to ignore

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DownloadError{URL: url, Status: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(dir, "archbase-*.db.partial")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()       // ignore error
		_ = os.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("close download file: %w", err)
	}

	final := tmpName[:len(tmpName)-len(".partial")]
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("finalize download: %w", err)
	}
	return final, nil
}
