package repository

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/observability"
)

func testMarkRepo() *markRepository {
	return &markRepository{base: base{
		table:   "marks",
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger:  observability.NopLogger{},
		metrics: observability.NopMetrics{},
	}}
}

func TestMarkInsertCarriesTags(t *testing.T) {
	r := testMarkRepo()

	mark := &entity.Mark{
		ID:     "m1",
		UserID: "u1",
		Kind:   entity.MarkKindURL,
		Status: entity.MarkStatusPending,
		Tags:   pq.StringArray{"reading", "go"},
	}

	sqlQuery, args, err := r.insertQuery(mark).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sqlQuery, "tags")
	require.Len(t, args, 13)
	assert.Equal(t, mark.Tags, args[9])
}

// Moving a mark to any non-success status must carry a row-level guard so
// a stale reader cannot downgrade a mark that just reached success.
func TestGuardStickyBlocksDowngrades(t *testing.T) {
	qb := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	for _, to := range []entity.MarkStatus{
		entity.MarkStatusProcessing,
		entity.MarkStatusFailed,
		entity.MarkStatusPending,
	} {
		sqlQuery, args, err := guardSticky(qb.Update("marks").Set("status", to), to).
			Where(squirrel.Eq{"id": "m1"}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sqlQuery, "status <>", "target %s must be guarded", to)
		assert.Contains(t, args, entity.MarkStatusSuccess)
	}

	// Setting success itself needs no guard; it is the sticky state.
	sqlQuery, _, err := guardSticky(qb.Update("marks").Set("status", entity.MarkStatusSuccess), entity.MarkStatusSuccess).
		Where(squirrel.Eq{"id": "m1"}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sqlQuery, "status <>")
}
