package businessflow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/humanflow/models"
	"github.com/amirphl/humanflow/repository"
	"github.com/amirphl/humanflow/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RehydratedSession is a persisted upload reloaded for resumption
type RehydratedSession struct {
	Upload   models.Upload        `json:"upload"`
	Mapping  models.ColumnMapping `json:"mapping"`
	Contacts []models.Prospect    `json:"contacts"`
}

// SessionStore is the only durable writer of users, uploads, contacts and templates
type SessionStore interface {
	EnsureUser(ctx context.Context, email string) (string, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	CreateUpload(ctx context.Context, userEmail, filename, sheetName string, mapping models.ColumnMapping) (uint, error)
	SaveContacts(ctx context.Context, uploadID uint, userEmail string, contacts []models.Prospect) error
	UpdateContactStatus(ctx context.Context, uploadID uint, contactID, status string) error
	ListUploads(ctx context.Context, userEmail string, limit int) ([]models.UploadSummary, error)
	Rehydrate(ctx context.Context, uploadID uint) (*RehydratedSession, error)
	GetTemplate(ctx context.Context, email string) (string, bool, error)
	SaveTemplate(ctx context.Context, email, content string) error
	SetRecoveryCode(ctx context.Context, email, code string, expires time.Time) error
	ResetPassword(ctx context.Context, email, code, passwordHash string) error
}

// SessionStoreOptions tune the gorm-backed store
type SessionStoreOptions struct {
	BatchSize      int
	BcryptCost     int
	ClosedKeywords []string
	HistoryLimit   int
}

// GormSessionStore implements SessionStore on PostgreSQL through the repositories
type GormSessionStore struct {
	db           *gorm.DB
	userRepo     repository.UserRepository
	uploadRepo   repository.UploadRepository
	contactRepo  repository.ContactRepository
	templateRepo repository.MessageTemplateRepository
	opts         SessionStoreOptions
	logger       *zap.Logger
}

// NewGormSessionStore creates a session store over db
func NewGormSessionStore(db *gorm.DB, opts SessionStoreOptions, logger *zap.Logger) *GormSessionStore {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 5
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &GormSessionStore{
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		uploadRepo:   repository.NewUploadRepository(db),
		contactRepo:  repository.NewContactRepository(db, opts.BatchSize),
		templateRepo: repository.NewMessageTemplateRepository(db),
		opts:         opts,
		logger:       logger,
	}
}

// EnsureUser upserts the user and refreshes last_seen
func (s *GormSessionStore) EnsureUser(ctx context.Context, email string) (string, error) {
	email = utils.NormalizeEmail(email)
	if err := s.userRepo.Touch(ctx, email, utils.UTCNow()); err != nil {
		return "", err
	}
	return email, nil
}

// Authenticate implements CredentialStore. Legacy hashes are upgraded to bcrypt on success.
func (s *GormSessionStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	user, err := s.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	ok, upgrade := verifyPassword(user.PasswordHash, password)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if upgrade {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
		if err == nil {
			err = s.userRepo.UpdatePassword(ctx, email, string(hash))
		}
		if err != nil {
			s.logger.Warn("Failed to upgrade legacy password hash", zap.String("email", email), zap.Error(err))
		} else {
			user.PasswordHash = string(hash)
		}
	}
	return user, nil
}

// CreateUpload records a completed import and returns its id
func (s *GormSessionStore) CreateUpload(ctx context.Context, userEmail, filename, sheetName string, mapping models.ColumnMapping) (uint, error) {
	upload := &models.Upload{
		UserEmail:    utils.NormalizeEmail(userEmail),
		Filename:     filename,
		SheetName:    sheetName,
		MappedConfig: mapping,
		CreatedAt:    utils.UTCNow(),
	}
	if err := s.uploadRepo.Save(ctx, upload); err != nil {
		return 0, err
	}
	return upload.ID, nil
}

// SaveContacts writes prospects in batches inside one transaction. A failing
// batch aborts the whole save.
func (s *GormSessionStore) SaveContacts(ctx context.Context, uploadID uint, userEmail string, contacts []models.Prospect) error {
	if len(contacts) == 0 {
		return nil
	}
	userEmail = utils.NormalizeEmail(userEmail)
	now := utils.UTCNow()

	rows := make([]*models.Contact, 0, len(contacts))
	for i, p := range contacts {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode contact %s: %w", p.ID, err)
		}
		rows = append(rows, &models.Contact{
			UploadID:  uploadID,
			ID:        p.ID,
			UserEmail: userEmail,
			RowIndex:  i,
			Data:      datatypes.JSON(data),
			Status:    p.Estado,
			UpdatedAt: now,
		})
	}

	return repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		for batch, start := 0, 0; start < len(rows); batch, start = batch+1, start+s.opts.BatchSize {
			end := min(start+s.opts.BatchSize, len(rows))
			if err := s.contactRepo.SaveBatch(txCtx, rows[start:end]); err != nil {
				return fmt.Errorf("save contacts batch %d: %w", batch, err)
			}
		}
		return nil
	})
}

// UpdateContactStatus sets the status of one contact of an upload
func (s *GormSessionStore) UpdateContactStatus(ctx context.Context, uploadID uint, contactID, status string) error {
	n, err := s.contactRepo.UpdateStatus(ctx, uploadID, contactID, status)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// ListUploads returns the newest uploads of a user with contact counters
func (s *GormSessionStore) ListUploads(ctx context.Context, userEmail string, limit int) ([]models.UploadSummary, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	return s.uploadRepo.ListSummaries(ctx, utils.NormalizeEmail(userEmail), s.opts.ClosedKeywords, limit)
}

// Rehydrate reloads an upload with its contacts in original order. The status
// column is authoritative over the status stored in the payload.
func (s *GormSessionStore) Rehydrate(ctx context.Context, uploadID uint) (*RehydratedSession, error) {
	upload, err := s.uploadRepo.ByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, ErrUploadNotFound
	}

	rows, err := s.contactRepo.ByFilter(ctx, models.ContactFilter{UploadID: &uploadID, UserEmail: &upload.UserEmail}, "row_index ASC", 0, 0)
	if err != nil {
		return nil, err
	}

	contacts := make([]models.Prospect, 0, len(rows))
	for _, row := range rows {
		var p models.Prospect
		if err := json.Unmarshal(row.Data, &p); err != nil {
			return nil, fmt.Errorf("decode contact %s: %w", row.ID, err)
		}
		p.ID = row.ID
		p.Estado = row.Status
		contacts = append(contacts, p)
	}

	return &RehydratedSession{
		Upload:   *upload,
		Mapping:  upload.MappedConfig,
		Contacts: contacts,
	}, nil
}

// GetTemplate returns the saved template of a user and whether one exists
func (s *GormSessionStore) GetTemplate(ctx context.Context, email string) (string, bool, error) {
	tpl, err := s.templateRepo.ByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return "", false, err
	}
	if tpl == nil {
		return "", false, nil
	}
	return tpl.Content, true, nil
}

// SaveTemplate replaces the template of a user
func (s *GormSessionStore) SaveTemplate(ctx context.Context, email, content string) error {
	return s.templateRepo.Upsert(ctx, utils.NormalizeEmail(email), content)
}

// SetRecoveryCode stores a password recovery code for an existing user
func (s *GormSessionStore) SetRecoveryCode(ctx context.Context, email, code string, expires time.Time) error {
	email = utils.NormalizeEmail(email)
	exists, err := s.userRepo.Exists(ctx, models.UserFilter{Email: &email})
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return s.userRepo.SetRecoveryCode(ctx, email, code, expires)
}

// ResetPassword replaces the password hash when code matches an unexpired recovery code
func (s *GormSessionStore) ResetPassword(ctx context.Context, email, code, passwordHash string) error {
	email = utils.NormalizeEmail(email)
	user, err := s.userRepo.ByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !recoveryCodeValid(user, code, utils.UTCNow()) {
		return ErrInvalidRecoveryCode
	}
	return s.userRepo.UpdatePassword(ctx, email, passwordHash)
}

func recoveryCodeValid(user *models.User, code string, now time.Time) bool {
	if user == nil || user.RecoveryCode == nil || user.RecoveryExpires == nil || code == "" {
		return false
	}
	if now.After(*user.RecoveryExpires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*user.RecoveryCode), []byte(code)) == 1
}
