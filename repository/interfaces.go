// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/humanflow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// UserRepository defines operations for users
type UserRepository interface {
	Exists(ctx context.Context, filter models.UserFilter) (bool, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	Touch(ctx context.Context, email string, seenAt time.Time) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	SetRecoveryCode(ctx context.Context, email, code string, expires time.Time) error
}

// UploadRepository defines operations for uploads
type UploadRepository interface {
	Save(ctx context.Context, entity *models.Upload) error
	ByID(ctx context.Context, id uint) (*models.Upload, error)
	ListSummaries(ctx context.Context, userEmail string, closedKeywords []string, limit int) ([]models.UploadSummary, error)
}

// ContactRepository defines operations for persisted contacts
type ContactRepository interface {
	ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error)
	SaveBatch(ctx context.Context, entities []*models.Contact) error
	UpdateStatus(ctx context.Context, uploadID uint, contactID, status string) (int64, error)
}

// MessageTemplateRepository defines operations for per-user message templates
type MessageTemplateRepository interface {
	ByEmail(ctx context.Context, email string) (*models.MessageTemplate, error)
	Upsert(ctx context.Context, email, content string) error
}
