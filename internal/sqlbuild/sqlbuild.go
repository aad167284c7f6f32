// Package sqlbuild assembles parameterized SQL for the catalogue's read
// queries. All statements are built from a typed clause list, so the number
// of '?' placeholders always equals the number of bound arguments by
// construction — there is no string concatenation of caller input anywhere.
//
// Column identifiers come exclusively from the canonical allow-lists below.
// This is the only place in the module that maps logical sort/filter keys to
// physical column names.
package sqlbuild

import (
	"sort"
	"strings"

	"github.com/openarch-dev/archbase/api"
)

// sortColumns maps logical sort keys to physical columns.
var sortColumns = map[string]string{
	"title":      "a.title",
	"architect":  "a.architect",
	"year":       "a.completion_year",
	"prefecture": "a.prefecture",
	"category":   "a.category",
}

// defaultSortColumn is used whenever the requested key is absent or unknown.
const defaultSortColumn = "a.completion_year"

// searchColumns are the text columns matched by the free-text term.
var searchColumns = []string{
	"a.title",
	"a.architect",
	"a.address",
	"a.prefecture",
	"a.category",
}

// filterColumns maps logical equality-filter keys to physical columns.
var filterColumns = map[string]string{
	"prefecture":   "a.prefecture",
	"category":     "a.category",
	"architect":    "a.architect",
	"architect_id": "a.architect_id",
}

// distinctColumns maps logical keys accepted by Distinct to physical columns.
var distinctColumns = map[string]string{
	"prefecture": "prefecture",
	"category":   "category",
	"architect":  "architect",
}

// clause is one WHERE fragment with its bound arguments.
// Fragments are joined with AND; arguments are concatenated in order.
type clause struct {
	expr string
	args []any
}

type clauseList struct {
	clauses []clause
}

func (l *clauseList) add(expr string, args ...any) {
	l.clauses = append(l.clauses, clause{expr: expr, args: args})
}

// where reduces the list to SQL text plus the positional argument vector in
// one step. An empty list yields the neutral predicate.
func (l *clauseList) where() (string, []any) {
	if len(l.clauses) == 0 {
		return "1=1", nil
	}
	exprs := make([]string, 0, len(l.clauses))
	var args []any
	for _, c := range l.clauses {
		exprs = append(exprs, c.expr)
		args = append(args, c.args...)
	}
	return strings.Join(exprs, " AND "), args
}

// Statement is SQL text plus its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// SearchStatements is the pair of statements backing one paged search:
// a count over the shared predicate, and the page select with ordering and
// pagination appended.
type SearchStatements struct {
	Count Statement
	Page  Statement
}

// Search translates a SearchRequest into the count/page statement pair.
// The tag join is added only when tags are present — joins change row
// multiplicity, hence COUNT(DISTINCT) and SELECT DISTINCT throughout.
func Search(req api.SearchRequest) SearchStatements {
	var list clauseList

	if term := strings.TrimSpace(req.Query); term != "" {
		pattern := "%" + term + "%"
		ors := make([]string, 0, len(searchColumns))
		args := make([]any, 0, len(searchColumns))
		for _, col := range searchColumns {
			ors = append(ors, col+" LIKE ?")
			args = append(args, pattern)
		}
		list.add("("+strings.Join(ors, " OR ")+")", args...)
	}

	// Deterministic key order — map iteration order is randomized and the
	// generated SQL should be stable across runs.
	filterKeys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)
	for _, key := range filterKeys {
		col, ok := filterColumns[key]
		if !ok {
			continue // unknown keys are dropped, never interpolated
		}
		list.add(col+" = ?", req.Filters[key])
	}

	if req.YearFrom > 0 {
		list.add("a.completion_year >= ?", req.YearFrom)
	}
	if req.YearTo > 0 {
		list.add("a.completion_year <= ?", req.YearTo)
	}

	join := ""
	if len(req.Tags) > 0 {
		join = " JOIN architecture_tag at ON at.architecture_id = a.id" +
			" JOIN tag t ON t.id = at.tag_id"
		marks := make([]string, len(req.Tags))
		args := make([]any, len(req.Tags))
		for i, tag := range req.Tags {
			marks[i] = "?"
			args[i] = tag
		}
		list.add("t.name IN ("+strings.Join(marks, ",")+")", args...)
	}

	where, args := list.where()

	count := Statement{
		SQL:  "SELECT COUNT(DISTINCT a.id) FROM architecture a" + join + " WHERE " + where,
		Args: args,
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * req.Limit

	pageArgs := make([]any, 0, len(args)+2)
	pageArgs = append(pageArgs, args...)
	pageArgs = append(pageArgs, req.Limit, offset)

	sel := Statement{
		SQL: "SELECT DISTINCT a.* FROM architecture a" + join +
			" WHERE " + where +
			" ORDER BY " + resolveSort(req.SortBy) + " " + resolveDirection(req.SortDir) +
			" LIMIT ? OFFSET ?",
		Args: pageArgs,
	}

	return SearchStatements{Count: count, Page: sel}
}

// ByID builds the primary-key lookup for one architecture record.
func ByID(id int64) Statement {
	return Statement{
		SQL:  "SELECT * FROM architecture WHERE id = ?",
		Args: []any{id},
	}
}

// ArchitectByID builds the primary-key lookup for one architect record.
func ArchitectByID(id int64) Statement {
	return Statement{
		SQL:  "SELECT * FROM architect WHERE id = ?",
		Args: []any{id},
	}
}

// FacetCounts builds the tag facet query: every tag name with the number of
// records carrying it, ordered count-descending then label-ascending.
func FacetCounts() Statement {
	return Statement{
		SQL: "SELECT t.name AS label, COUNT(DISTINCT at.architecture_id) AS count" +
			" FROM tag t JOIN architecture_tag at ON at.tag_id = t.id" +
			" GROUP BY t.name" +
			" ORDER BY count DESC, label ASC",
	}
}

// Distinct builds the distinct-values query for an allow-listed logical key.
// The second return is false for unknown keys; callers must not execute any
// SQL in that case.
func Distinct(key string) (Statement, bool) {
	col, ok := distinctColumns[key]
	if !ok {
		return Statement{}, false
	}
	return Statement{
		SQL: "SELECT DISTINCT " + col + " FROM architecture" +
			" WHERE " + col + " IS NOT NULL AND " + col + " != ''" +
			" ORDER BY " + col + " ASC",
	}, true
}

// resolveSort maps a logical sort key through the allow-list, falling back to
// the default column for anything unrecognized. Raw caller text never reaches
// the ORDER BY clause.
func resolveSort(key string) string {
	if col, ok := sortColumns[key]; ok {
		return col
	}
	return defaultSortColumn
}

// resolveDirection yields exactly ASC or DESC.
func resolveDirection(dir api.SortDirection) string {
	if strings.EqualFold(string(dir), string(api.SortDesc)) {
		return "DESC"
	}
	return "ASC"
}
