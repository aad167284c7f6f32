// Package api defines the shared types exchanged between the access layer
// and its consumers: the chunk manifest, search requests/responses, and the
// mapped row representation.
package api

// Manifest describes how a remote database file is split into chunks so a
// range-based reader knows what to request. Produced by the chunker, fetched
// read-only by the chunked loader.
type Manifest struct {
	// DatabaseFileName is the name of the database file relative to the base URL.
	DatabaseFileName string `json:"databaseFileName"`
	// ChunkSizeBytes is the size of every chunk except possibly the last.
	ChunkSizeBytes int64 `json:"chunkSizeBytes"`
	// TotalSizeBytes is the exact byte length of the database file.
	TotalSizeBytes int64 `json:"totalSizeBytes"`
	// ChunkCount == ceil(TotalSizeBytes / ChunkSizeBytes).
	ChunkCount int64 `json:"chunkCount"`
}

// Record is one mapped result row, keyed by column name.
type Record = map[string]any

// SortDirection is the requested ordering for a search.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SearchRequest is a structured, injection-safe description of a paged search.
// Column identifiers (SortBy keys, Filters keys) are logical names resolved
// through an allow-list; raw caller text never reaches SQL except as a bound
// parameter.
type SearchRequest struct {
	// Page is 1-based. Values below 1 are treated as 1.
	Page int `json:"page"`
	// Limit is the page size. The service layer rejects Limit <= 0.
	Limit int `json:"limit"`
	// Query is an optional free-text term matched as a substring across the
	// searchable text columns.
	Query string `json:"query,omitempty"`
	// Tags restricts results to records carrying any of the given tag names.
	Tags []string `json:"tags,omitempty"`
	// Filters are equality constraints on allow-listed logical columns.
	// Unknown keys are dropped, never interpolated.
	Filters map[string]string `json:"filters,omitempty"`
	// YearFrom/YearTo bound the completion year (0 means unbounded).
	YearFrom int `json:"yearFrom,omitempty"`
	YearTo   int `json:"yearTo,omitempty"`
	// SortBy is a logical sort key; unknown keys fall back to the default.
	SortBy  string        `json:"sortBy,omitempty"`
	SortDir SortDirection `json:"sortDir,omitempty"`
}

// SearchResponse is a well-formed page of results.
// Invariants: len(Results) <= Limit; TotalPages == ceil(Total/Limit);
// Total == 0 implies empty Results and TotalPages == 0.
type SearchResponse struct {
	Results    []Record `json:"results"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
}

// FacetCount is one distinct label with the number of records carrying it,
// ordered count-descending then label-ascending.
type FacetCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
