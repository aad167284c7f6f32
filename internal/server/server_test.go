package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openarch-dev/archbase/api"
	"github.com/openarch-dev/archbase/internal/gateway"
	"github.com/openarch-dev/archbase/internal/records"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "arch.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE architecture (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			architect TEXT,
			architect_id INTEGER,
			prefecture TEXT,
			address TEXT,
			latitude REAL,
			longitude REAL,
			completion_year INTEGER,
			category TEXT,
			img_url TEXT
		);
		CREATE TABLE architect (id INTEGER PRIMARY KEY, name TEXT NOT NULL, name_en TEXT,
			birth_year INTEGER, death_year INTEGER, nationality TEXT, bio TEXT);
		CREATE TABLE tag (id INTEGER PRIMARY KEY, name TEXT UNIQUE NOT NULL);
		CREATE TABLE architecture_tag (architecture_id INTEGER NOT NULL, tag_id INTEGER NOT NULL,
			PRIMARY KEY (architecture_id, tag_id));
	`)
	require.NoError(t, err)
	for i := 1; i <= 30; i++ {
		_, err = db.Exec(
			"INSERT INTO architecture (id, title, architect, prefecture, completion_year, category) VALUES (?, ?, ?, ?, ?, ?)",
			i, fmt.Sprintf("Work %02d", i), "Builder", "Tokyo", 1950+i, "House")
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	g := gateway.New(nil, func(ctx context.Context) (*gateway.Backend, error) {
		db, err := sql.Open("sqlite", dbPath+"?mode=ro")
		if err != nil {
			return nil, err
		}
		return gateway.NewBackend(gateway.BackendDirect, db, nil), nil
	})
	t.Cleanup(func() { _ = g.Reset() })

	srv := httptest.NewServer(New(records.New(g), dbPath, 4096).Handler())
	t.Cleanup(srv.Close)
	return srv, dbPath
}

func TestManifestEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/manifest.json")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var m api.Manifest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, "arch.db", m.DatabaseFileName)
	assert.EqualValues(t, 4096, m.ChunkSizeBytes)
	assert.Positive(t, m.TotalSizeBytes)
	assert.Equal(t, (m.TotalSizeBytes+4095)/4096, m.ChunkCount)
}

func TestDatabaseRangeRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/arch.db", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=0-15")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Len(t, body, 16)
	assert.Equal(t, "SQLite format 3\x00", string(body), "database header via range request")
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/records?page=2&limit=10")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page api.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 30, page.Total)
	assert.Len(t, page.Results, 10)
	assert.Equal(t, 3, page.TotalPages)
}

func TestRecordEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/records/5")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "Work 05", rec["title"])

	missing, err := srv.Client().Get(srv.URL + "/api/records/404404")
	require.NoError(t, err)
	defer func() { _ = missing.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := srv.Client().Get(srv.URL + "/api/records/not-a-number")
	require.NoError(t, err)
	defer func() { _ = bad.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestValuesEndpointUnknownKey(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/values/unrecognized")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var values []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&values))
	assert.Empty(t, values)
}
