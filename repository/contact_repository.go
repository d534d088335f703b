package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/humanflow/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository interface
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

// NewContactRepository creates a new contact repository. batchSize bounds the
// rows per INSERT in SaveBatch.
func NewContactRepository(db *gorm.DB, batchSize int) ContactRepository {
	base := NewBaseRepository[models.Contact, models.ContactFilter](db)
	if batchSize > 0 {
		base.BatchSize = batchSize
	}
	return &ContactRepositoryImpl{BaseRepository: base}
}

// UpdateStatus sets the status column and mirrors it into data.estado.
// It returns the number of affected rows.
func (r *ContactRepositoryImpl) UpdateStatus(ctx context.Context, uploadID uint, contactID, status string) (int64, error) {
	result := r.getDB(ctx).Model(&models.Contact{}).
		Where("upload_id = ? AND id = ?", uploadID, contactID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
			"data":       gorm.Expr("jsonb_set(data, '{estado}', to_jsonb(?::text))", status),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update contact status: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ContactRepositoryImpl) applyFilter(query *gorm.DB, filter models.ContactFilter) *gorm.DB {
	if filter.UploadID != nil {
		query = query.Where("upload_id = ?", *filter.UploadID)
	}
	if filter.UserEmail != nil {
		query = query.Where("user_email = ?", *filter.UserEmail)
	}
	return query
}

// ByFilter retrieves contacts based on filter criteria, by default in upload
// then original row order
func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Contact{}), filter)

	if orderBy == "" {
		orderBy = "upload_id DESC, row_index ASC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return rows, nil
}
