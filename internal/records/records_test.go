package records

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openarch-dev/archbase/api"
	"github.com/openarch-dev/archbase/internal/gateway"
)

const schemaSQL = `
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
	CREATE TABLE architect (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		name_en TEXT,
		birth_year INTEGER,
		death_year INTEGER,
		nationality TEXT,
		bio TEXT
	);
	CREATE TABLE tag (id INTEGER PRIMARY KEY, name TEXT UNIQUE NOT NULL);
	CREATE TABLE architecture_tag (
		architecture_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY (architecture_id, tag_id)
	);
`

// newService builds a service over a real gateway backed by a fixture
// database seeded by the given function.
func newService(t *testing.T, seed func(t *testing.T, db *sql.DB)) (*Service, *gateway.Gateway) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	if seed != nil {
		seed(t, db)
	}
	require.NoError(t, db.Close())

	g := gateway.New(nil, func(ctx context.Context) (*gateway.Backend, error) {
		db, err := sql.Open("sqlite", path+"?mode=ro")
		if err != nil {
			return nil, err
		}
		return gateway.NewBackend(gateway.BackendDirect, db, nil), nil
	})
	t.Cleanup(func() { _ = g.Reset() })
	return New(g), g
}

func insertWork(t *testing.T, db *sql.DB, id int, title, architect, prefecture string, year int, category string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO architecture (id, title, architect, prefecture, completion_year, category) VALUES (?, ?, ?, ?, ?, ?)",
		id, title, architect, prefecture, year, category)
	require.NoError(t, err)
}

func TestSearchFreeTextScenario(t *testing.T) {
	// 20 rows, 3 of which mention Ando in a searchable column.
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		for i := 1; i <= 17; i++ {
			insertWork(t, db, i, fmt.Sprintf("Tower %d", i), "Kenzo Tange", "Tokyo", 1960+i, "Office")
		}
		insertWork(t, db, 18, "Church of the Light", "Tadao Ando", "Osaka", 1989, "Church")
		insertWork(t, db, 19, "Ando Museum", "Tadao Ando", "Kagawa", 2013, "Museum")
		insertWork(t, db, 20, "Hill of the Buddha", "Tadao Ando", "Hokkaido", 2015, "Temple")
	})

	resp := svc.Search(context.Background(), api.SearchRequest{Page: 1, Limit: 12, Query: "Ando"})
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestSearchPaginationScenario(t *testing.T) {
	// 25 rows, page 2 with limit 10 → 10 results, 3 pages.
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		for i := 1; i <= 25; i++ {
			insertWork(t, db, i, fmt.Sprintf("Work %02d", i), "Anonymous", "Kyoto", 1900+i, "House")
		}
	})

	resp := svc.Search(context.Background(), api.SearchRequest{Page: 2, Limit: 10})
	assert.Equal(t, 25, resp.Total)
	assert.Len(t, resp.Results, 10)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 2, resp.Page)
}

func TestSearchSortOrder(t *testing.T) {
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		insertWork(t, db, 1, "B House", "X", "Tokyo", 1990, "House")
		insertWork(t, db, 2, "A House", "Y", "Tokyo", 2000, "House")
		insertWork(t, db, 3, "C House", "Z", "Tokyo", 1980, "House")
	})

	resp := svc.Search(context.Background(), api.SearchRequest{
		Page: 1, Limit: 10, SortBy: "title", SortDir: api.SortAsc,
	})
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "A House", resp.Results[0]["title"])
	assert.Equal(t, "B House", resp.Results[1]["title"])
	assert.Equal(t, "C House", resp.Results[2]["title"])

	byYear := svc.Search(context.Background(), api.SearchRequest{
		Page: 1, Limit: 10, SortBy: "year", SortDir: api.SortDesc,
	})
	require.Len(t, byYear.Results, 3)
	assert.EqualValues(t, 2000, byYear.Results[0]["completion_year"])
}

func TestSearchTagFilter(t *testing.T) {
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		insertWork(t, db, 1, "Concrete Hall", "A", "Tokyo", 1970, "Hall")
		insertWork(t, db, 2, "Wooden House", "B", "Nara", 1980, "House")
		_, err := db.Exec(`
			INSERT INTO tag (id, name) VALUES (1, 'concrete'), (2, 'wood');
			INSERT INTO architecture_tag (architecture_id, tag_id) VALUES (1, 1), (2, 2);
		`)
		require.NoError(t, err)
	})

	resp := svc.Search(context.Background(), api.SearchRequest{Page: 1, Limit: 10, Tags: []string{"concrete"}})
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Concrete Hall", resp.Results[0]["title"])
}

func TestSearchRejectsNonPositiveLimit(t *testing.T) {
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		insertWork(t, db, 1, "Something", "A", "Tokyo", 1970, "Hall")
	})

	resp := svc.Search(context.Background(), api.SearchRequest{Page: 1, Limit: 0})
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.TotalPages)
}

func TestSearchFailSoftOnMissingSchema(t *testing.T) {
	// Empty database: no architecture table at all. The same failure that is
	// fail-loud from the gateway is absorbed here.
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE placeholder (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	g := gateway.New(nil, func(ctx context.Context) (*gateway.Backend, error) {
		db, err := sql.Open("sqlite", path+"?mode=ro")
		if err != nil {
			return nil, err
		}
		return gateway.NewBackend(gateway.BackendDirect, db, nil), nil
	})
	defer func() { _ = g.Reset() }()
	svc := New(g)

	// Fail-loud below:
	_, err = g.Execute(context.Background(), "SELECT * FROM architecture")
	var qe *gateway.QueryError
	require.ErrorAs(t, err, &qe)

	// Fail-soft here:
	resp := svc.Search(context.Background(), api.SearchRequest{Page: 1, Limit: 10})
	assert.Equal(t, api.SearchResponse{
		Results: []api.Record{}, Total: 0, Page: 1, Limit: 10, TotalPages: 0,
	}, resp)
	assert.Empty(t, svc.FacetCounts(context.Background()))
	assert.Empty(t, svc.DistinctValues(context.Background(), "prefecture"))
}

func TestByID(t *testing.T) {
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		insertWork(t, db, 7, "Sunny Pavilion", "Kazuyo Sejima", "Ishikawa", 2004, "Museum")
	})

	rec := svc.ByID(context.Background(), 7)
	require.NotNil(t, rec)
	assert.Equal(t, "Sunny Pavilion", rec["title"])

	assert.Nil(t, svc.ByID(context.Background(), 9999))
}

func TestArchitectByID(t *testing.T) {
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		_, err := db.Exec(
			"INSERT INTO architect (id, name, name_en, birth_year, nationality) VALUES (1, ?, ?, 1941, 'JP')",
			"安藤忠雄", "Tadao Ando")
		require.NoError(t, err)
	})

	rec := svc.ArchitectByID(context.Background(), 1)
	require.NotNil(t, rec)
	assert.Equal(t, "Tadao Ando", rec["name_en"])
}

func TestFacetCountsOrdering(t *testing.T) {
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		insertWork(t, db, 1, "W1", "A", "Tokyo", 1970, "Hall")
		insertWork(t, db, 2, "W2", "B", "Tokyo", 1971, "Hall")
		insertWork(t, db, 3, "W3", "C", "Tokyo", 1972, "Hall")
		_, err := db.Exec(`
			INSERT INTO tag (id, name) VALUES (1, 'wood'), (2, 'concrete'), (3, 'brick');
			INSERT INTO architecture_tag (architecture_id, tag_id) VALUES
				(1, 2), (2, 2), (3, 2),
				(1, 1),
				(2, 3);
		`)
		require.NoError(t, err)
	})

	facets := svc.FacetCounts(context.Background())
	require.Len(t, facets, 3)
	assert.Equal(t, api.FacetCount{Label: "concrete", Count: 3}, facets[0])
	// Tie on count resolves label-ascending.
	assert.Equal(t, api.FacetCount{Label: "brick", Count: 1}, facets[1])
	assert.Equal(t, api.FacetCount{Label: "wood", Count: 1}, facets[2])
}

// countingQuerier records every execution so tests can assert none happened.
type countingQuerier struct {
	calls int
}

func (c *countingQuerier) Execute(ctx context.Context, query string, args ...any) (*gateway.Result, error) {
	c.calls++
	return &gateway.Result{}, nil
}

func (c *countingQuerier) Rows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	c.calls++
	return nil, nil
}

func (c *countingQuerier) Row(ctx context.Context, query string, args ...any) (map[string]any, error) {
	c.calls++
	return nil, nil
}

func TestDistinctValuesUnknownKeyExecutesNoSQL(t *testing.T) {
	q := &countingQuerier{}
	svc := New(q)

	values := svc.DistinctValues(context.Background(), "unrecognizedColumn")
	assert.Empty(t, values)
	assert.Zero(t, q.calls, "unknown key must never reach the gateway")
}

func TestDistinctValues(t *testing.T) {
	svc, _ := newService(t, func(t *testing.T, db *sql.DB) {
		insertWork(t, db, 1, "W1", "A", "Tokyo", 1970, "Hall")
		insertWork(t, db, 2, "W2", "B", "Osaka", 1971, "Hall")
		insertWork(t, db, 3, "W3", "C", "Tokyo", 1972, "Hall")
		insertWork(t, db, 4, "W4", "D", "", 1973, "Hall")
	})

	values := svc.DistinctValues(context.Background(), "prefecture")
	assert.Equal(t, []string{"Osaka", "Tokyo"}, values, "distinct, non-empty, sorted")
}
