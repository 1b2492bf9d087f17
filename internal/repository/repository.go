// Package repository persists the capture pipeline's entities in
// PostgreSQL. Queries are built with squirrel and scanned with sqlx.
package repository

import (
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/jchook/retrace/internal/database"
	"github.com/jchook/retrace/internal/observability"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("entity not found")

type base struct {
	db      *database.DB
	logger  observability.Logger
	metrics observability.Metrics
	table   string
	qb      squirrel.StatementBuilderType
}

func newBase(db *database.DB, logger observability.Logger, metrics observability.Metrics, table string) base {
	return base{
		db:      db,
		logger:  logger.WithFields(map[string]interface{}{"table": table}),
		metrics: metrics,
		table:   table,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (b base) countOp(op string) {
	b.metrics.IncrementCounter("repository."+b.table+"."+op, nil)
}

func (b base) countError(op string) {
	b.metrics.IncrementCounter("repository."+b.table+".errors", map[string]string{"op": op})
}
