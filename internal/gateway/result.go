package gateway

import "database/sql"

// Result is the uniform tabular contract both backends resolve to: an
// ordered column list plus rows of scalar values, each row exactly
// len(Columns) long. Zero rows is a valid result, distinct from failure.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Records maps each row to a column-name-keyed record, preserving row order.
func (r *Result) Records() []map[string]any {
	records := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			rec[col] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// collect drains a *sql.Rows into a Result. Byte slices are normalized to
// strings so the two drivers present identical values for TEXT columns.
func collect(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
