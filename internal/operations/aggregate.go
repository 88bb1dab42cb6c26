package operations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const IDAggregateStats = "aggregate-stats"

// AggregateStats computes live per-category statistics over stored places.
type AggregateStats struct {
	db *sql.DB
}

func NewAggregateStats(db *sql.DB) *AggregateStats {
	return &AggregateStats{db: db}
}

// CategoryStats is one row of the aggregate.
type CategoryStats struct {
	Category      string   `json:"category"`
	Count         int64    `json:"count"`
	AverageRating *float64 `json:"averageRating,omitempty"`
	MinRating     *float64 `json:"minRating,omitempty"`
	MaxRating     *float64 `json:"maxRating,omitempty"`
}

// Call expects {categories, locations, metrics}. Matching is case-insensitive
// on category and on the city stored in the raw document.
func (a *AggregateStats) Call(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	query, args := buildAggregateQuery(stringsParam(params, "categories"), stringsParam(params, "locations"))

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate places: %w", err)
	}
	defer rows.Close()

	groups := []CategoryStats{}
	var total int64
	for rows.Next() {
		var (
			row         CategoryStats
			avg, lo, hi sql.NullFloat64
		)
		if err := rows.Scan(&row.Category, &row.Count, &avg, &lo, &hi); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		row.AverageRating = nullable(avg)
		row.MinRating = nullable(lo)
		row.MaxRating = nullable(hi)
		total += row.Count
		groups = append(groups, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}

	metrics := stringsParam(params, "metrics")
	if metrics == nil {
		metrics = []string{}
	}
	return map[string]interface{}{
		"groups":  groups,
		"total":   total,
		"metrics": metrics,
	}, nil
}

func buildAggregateQuery(categories, locations []string) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if len(categories) > 0 {
		args = append(args, pq.Array(lowerAll(categories)))
		where = append(where, fmt.Sprintf("lower(category) = ANY($%d)", len(args)))
	}
	if len(locations) > 0 {
		args = append(args, pq.Array(lowerAll(locations)))
		where = append(where, fmt.Sprintf("lower(raw->>'city') = ANY($%d)", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT category, COUNT(*), AVG((raw->>'rating')::float8), MIN((raw->>'rating')::float8), MAX((raw->>'rating')::float8) FROM places`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" GROUP BY category ORDER BY category")
	return b.String(), args
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
