package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/humanflow/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageTemplateRepositoryImpl implements MessageTemplateRepository interface
type MessageTemplateRepositoryImpl struct {
	*BaseRepository[models.MessageTemplate, struct{}]
}

// NewMessageTemplateRepository creates a new message template repository
func NewMessageTemplateRepository(db *gorm.DB) MessageTemplateRepository {
	return &MessageTemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MessageTemplate, struct{}](db),
	}
}

// ByEmail returns the template of a user, or nil when none was saved
func (r *MessageTemplateRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.MessageTemplate, error) {
	tpl, err := first[models.MessageTemplate](r.getDB(ctx).Where("user_email = ?", email))
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return tpl, nil
}

// Upsert replaces the template content of a user
func (r *MessageTemplateRepositoryImpl) Upsert(ctx context.Context, email, content string) error {
	now := time.Now().UTC()
	row := models.MessageTemplate{UserEmail: email, Content: content, UpdatedAt: now}
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_email"}},
		DoUpdates: clause.Assignments(map[string]any{
			"content":    content,
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}
