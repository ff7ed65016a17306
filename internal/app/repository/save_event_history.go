package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/shortng/internal/app/model"
)

const listSaveEventsSQL = `
SELECT id, filename, bucket, source, overwrite, password_protected, user_agent, "timestamp"
FROM save_events
WHERE filename = $1
ORDER BY "timestamp" DESC
LIMIT $2 OFFSET $3`

// SaveEventHistory reads the save journal.
type SaveEventHistory interface {
	ListByFilename(ctx context.Context, filename string, limit, offset int) ([]model.SaveEvent, error)
}

type saveEventHistory struct {
	pool *pgxpool.Pool
}

// NewSaveEventHistory returns a pgx-backed journal reader.
func NewSaveEventHistory(pool *pgxpool.Pool) SaveEventHistory {
	return &saveEventHistory{pool: pool}
}

func (h *saveEventHistory) ListByFilename(ctx context.Context, filename string, limit, offset int) ([]model.SaveEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := h.pool.Query(ctx, listSaveEventsSQL, filename, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query save events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SaveEvent, error) {
		var e model.SaveEvent
		err := row.Scan(&e.ID, &e.Filename, &e.Bucket, &e.Source, &e.Overwrite, &e.PasswordProtected, &e.UserAgent, &e.Timestamp)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan save events: %w", err)
	}
	return events, nil
}
