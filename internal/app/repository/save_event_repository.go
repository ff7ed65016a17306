package repository

import (
	"context"
	"time"

	"github.com/sifan077/shortng/internal/app/model"
	"gorm.io/gorm"
)

// SaveEventRepository defines the data access contract for the save journal.
type SaveEventRepository interface {
	Create(ctx context.Context, event *model.SaveEvent) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type saveEventRepository struct {
	db *gorm.DB
}

// NewSaveEventRepository returns a GORM-backed SaveEventRepository.
func NewSaveEventRepository(db *gorm.DB) SaveEventRepository {
	return &saveEventRepository{db: db}
}

// Create is idempotent on the event ID so redelivered messages do not fail.
func (r *saveEventRepository) Create(ctx context.Context, event *model.SaveEvent) error {
	return r.db.WithContext(ctx).
		Where(model.SaveEvent{ID: event.ID}).
		FirstOrCreate(event).Error
}

func (r *saveEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where(`"timestamp" < ?`, before).
		Delete(&model.SaveEvent{})
	return result.RowsAffected, result.Error
}
