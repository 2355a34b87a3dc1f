package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lawchat/internal/model"
)

type TranscriptRepository struct {
	db *gorm.DB
}

func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Upsert writes entry keyed by (client_id, seq). Replaying the same event
// leaves a single row.
func (r *TranscriptRepository) Upsert(ctx context.Context, entry *model.TranscriptEntry) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}, {Name: "seq"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sid", "mid", "role", "content", "sources",
			"feedback_correct", "feedback_comment", "feedback_submitted", "has_feedback",
			"sent_at", "updated_at",
		}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("upsert transcript entry failed: %w", err)
	}
	return nil
}

func (r *TranscriptRepository) UpdateFeedback(ctx context.Context, clientID string, seq int, fb model.Feedback) error {
	res := r.db.WithContext(ctx).
		Model(&model.TranscriptEntry{}).
		Where("client_id = ? AND seq = ?", clientID, seq).
		Updates(map[string]any{
			"feedback_correct":   fb.Correct,
			"feedback_comment":   fb.Comment,
			"feedback_submitted": fb.Submitted,
			"has_feedback":       true,
		})
	if res.Error != nil {
		return fmt.Errorf("update transcript feedback failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update transcript feedback failed: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *TranscriptRepository) DeleteByClient(ctx context.Context, clientID string) error {
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&model.TranscriptEntry{}).Error; err != nil {
		return fmt.Errorf("delete transcript failed: %w", err)
	}
	return nil
}

func (r *TranscriptRepository) ListByClient(ctx context.Context, clientID string) ([]model.TranscriptEntry, error) {
	var entries []model.TranscriptEntry
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Order("seq ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list transcript failed: %w", err)
	}
	return entries, nil
}
