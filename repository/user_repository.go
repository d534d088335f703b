package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/humanflow/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByEmail retrieves a user by its normalized email
func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := first[models.User](r.getDB(ctx).Where("email = ?", email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Touch inserts the user when missing and refreshes last_seen otherwise
func (r *UserRepositoryImpl) Touch(ctx context.Context, email string, seenAt time.Time) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	user := models.User{
		Email:     email,
		Plan:      models.UserPlanFree,
		Role:      models.UserRoleMember,
		CreatedAt: seenAt,
		LastSeen:  seenAt,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]any{"last_seen": seenAt}),
	}).Create(&user).Error
	if err != nil {
		err = fmt.Errorf("failed to upsert user: %w", err)
	}
	return finish(db, shouldCommit, err)
}

// UpdatePassword stores a new hash and clears any pending recovery code
func (r *UserRepositoryImpl) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	err := r.getDB(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"password_hash":    passwordHash,
			"recovery_code":    nil,
			"recovery_expires": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetRecoveryCode stores a one-time recovery code with its expiry
func (r *UserRepositoryImpl) SetRecoveryCode(ctx context.Context, email, code string, expires time.Time) error {
	err := r.getDB(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"recovery_code":    code,
			"recovery_expires": expires,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to set recovery code: %w", err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	return query
}

// Count returns the number of users matching the filter
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.User{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Exists checks if any user matching the filter exists
func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
