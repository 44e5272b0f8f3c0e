package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"companion-ai/internal/model"
)

// TranscriptRepository is the write side of the transcript archive.
type TranscriptRepository struct {
	db *gorm.DB
}

func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

func (r *TranscriptRepository) Migrate() error {
	if err := r.db.AutoMigrate(&model.ArchivedMessage{}); err != nil {
		return fmt.Errorf("auto migrate transcript failed: %w", err)
	}
	return nil
}

// Save inserts a transcript line. Redelivered lines are ignored by message ID.
func (r *TranscriptRepository) Save(ctx context.Context, msg *model.ArchivedMessage) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "message_id"}}, DoNothing: true}).
		Create(msg).Error
	if err != nil {
		return fmt.Errorf("save transcript line failed: %w", err)
	}
	return nil
}
