package operations

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateStats_GroupsByCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"category", "count", "avg", "min", "max"}).
		AddRow("cafes", 3, 4.2, 3.9, 4.8).
		AddRow("coffee shops", 2, nil, nil, nil)
	mock.ExpectQuery(`SELECT category, COUNT\(\*\).*FROM places WHERE lower\(category\) = ANY\(\$1\) AND lower\(raw->>'city'\) = ANY\(\$2\) GROUP BY category`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	out, err := NewAggregateStats(db).Call(context.Background(), map[string]interface{}{
		"categories": []string{"Coffee Shops", "cafes"},
		"locations":  []string{"Austin"},
		"metrics":    []string{"average"},
	})
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, int64(5), result["total"])
	assert.Equal(t, []string{"average"}, result["metrics"])
	groups := result["groups"].([]CategoryStats)
	require.Len(t, groups, 2)
	assert.Equal(t, "cafes", groups[0].Category)
	require.NotNil(t, groups[0].AverageRating)
	assert.InDelta(t, 4.2, *groups[0].AverageRating, 1e-9)
	assert.Nil(t, groups[1].AverageRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateStats_NoFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM places GROUP BY category ORDER BY category`).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count", "avg", "min", "max"}))

	out, err := NewAggregateStats(db).Call(context.Background(), map[string]interface{}{})
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, int64(0), result["total"])
	assert.Empty(t, result["groups"])
	assert.Equal(t, []string{}, result["metrics"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateStats_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM places`).WillReturnError(errors.New("connection reset"))

	_, err = NewAggregateStats(db).Call(context.Background(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregate places")
}

func TestBuildAggregateQuery_PlaceholdersInOrder(t *testing.T) {
	query, args := buildAggregateQuery(nil, []string{"Austin"})

	assert.Contains(t, query, "lower(raw->>'city') = ANY($1)")
	assert.NotContains(t, query, "lower(category)")
	assert.Len(t, args, 1)
}
