// Package records is the public query API consumed by UI collaborators.
// It delegates SQL construction to sqlbuild and execution to the gateway,
// then shapes mapped rows into domain responses.
//
// This layer is the fail-soft boundary: any execution failure is logged and
// replaced with an empty, well-formed response. The gateway below it stays
// fail-loud; the UI above it never sees a raw error.
package records

import (
	"context"
	"log"

	"github.com/openarch-dev/archbase/api"
	"github.com/openarch-dev/archbase/internal/gateway"
	"github.com/openarch-dev/archbase/internal/sqlbuild"
)

// Querier is the slice of the gateway surface this service needs.
type Querier interface {
	Execute(ctx context.Context, query string, args ...any) (*gateway.Result, error)
	Rows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	Row(ctx context.Context, query string, args ...any) (map[string]any, error)
}

var _ Querier = (*gateway.Gateway)(nil)

// Service answers catalogue read operations.
type Service struct {
	q Querier
}

// New builds a service over the given querier (normally the gateway).
func New(q Querier) *Service {
	return &Service{q: q}
}

func emptyResponse(page, limit int) api.SearchResponse {
	return api.SearchResponse{
		Results:    []api.Record{},
		Total:      0,
		Page:       page,
		Limit:      limit,
		TotalPages: 0,
	}
}

// Search runs a paged, filtered, sorted search. Limit must be positive;
// Page below 1 is treated as 1. Failures yield an empty well-formed page.
func (s *Service) Search(ctx context.Context, req api.SearchRequest) api.SearchResponse {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		log.Printf("records: rejecting search with limit %d", req.Limit)
		return emptyResponse(req.Page, req.Limit)
	}

	stmts := sqlbuild.Search(req)

	countRes, err := s.q.Execute(ctx, stmts.Count.SQL, stmts.Count.Args...)
	if err != nil {
		log.Printf("records: count query failed: %v", err)
		return emptyResponse(req.Page, req.Limit)
	}
	total := 0
	if len(countRes.Rows) > 0 && len(countRes.Rows[0]) > 0 {
		if n, ok := countRes.Rows[0][0].(int64); ok {
			total = int(n)
		}
	}
	if total == 0 {
		return emptyResponse(req.Page, req.Limit)
	}

	results, err := s.q.Rows(ctx, stmts.Page.SQL, stmts.Page.Args...)
	if err != nil {
		log.Printf("records: page query failed: %v", err)
		return emptyResponse(req.Page, req.Limit)
	}

	return api.SearchResponse{
		Results:    results,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: (total + req.Limit - 1) / req.Limit,
	}
}

// ByID returns one architecture record, or nil when absent or on failure.
func (s *Service) ByID(ctx context.Context, id int64) api.Record {
	stmt := sqlbuild.ByID(id)
	rec, err := s.q.Row(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		log.Printf("records: lookup id %d failed: %v", id, err)
		return nil
	}
	return rec
}

// ArchitectByID returns one architect record, or nil when absent or on failure.
func (s *Service) ArchitectByID(ctx context.Context, id int64) api.Record {
	stmt := sqlbuild.ArchitectByID(id)
	rec, err := s.q.Row(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		log.Printf("records: architect lookup id %d failed: %v", id, err)
		return nil
	}
	return rec
}

// FacetCounts returns tag facets ordered count-descending then
// label-ascending, or an empty slice on failure.
func (s *Service) FacetCounts(ctx context.Context) []api.FacetCount {
	stmt := sqlbuild.FacetCounts()
	res, err := s.q.Execute(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		log.Printf("records: facet query failed: %v", err)
		return []api.FacetCount{}
	}

	facets := make([]api.FacetCount, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) != 2 {
			continue
		}
		label, _ := row[0].(string)
		count, _ := row[1].(int64)
		facets = append(facets, api.FacetCount{Label: label, Count: int(count)})
	}
	return facets
}

// DistinctValues returns the distinct non-empty values of an allow-listed
// logical column. Unknown keys return an empty slice without executing any
// SQL.
func (s *Service) DistinctValues(ctx context.Context, key string) []string {
	stmt, ok := sqlbuild.Distinct(key)
	if !ok {
		return []string{}
	}
	res, err := s.q.Execute(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		log.Printf("records: distinct %q query failed: %v", key, err)
		return []string{}
	}

	values := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		if v, ok := row[0].(string); ok {
			values = append(values, v)
		}
	}
	return values
}
