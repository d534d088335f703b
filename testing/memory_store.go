package testing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/models"
	"github.com/amirphl/humanflow/utils"
	"golang.org/x/crypto/bcrypt"
)

type storedContact struct {
	prospect models.Prospect
	row      int
}

// MemorySessionStore is an in-memory businessflow.SessionStore. The Fail*
// fields inject errors into the matching operations.
type MemorySessionStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	uploads   map[uint]*models.Upload
	contacts  map[uint]map[string]*storedContact
	templates map[string]string
	nextID    uint

	ClosedKeywords []string

	FailSaveContacts    error
	FailStatusUpdate    error
	FailCreateUpload    error
	StatusUpdateLatency time.Duration
	statusUpdates       int
}

var _ businessflow.SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		users:          make(map[string]*models.User),
		uploads:        make(map[uint]*models.Upload),
		contacts:       make(map[uint]map[string]*storedContact),
		templates:      make(map[string]string),
		ClosedKeywords: []string{"contactado", "éxito", "exito", "cliente", "ganado"},
	}
}

// EnsureUser implements businessflow.SessionStore
func (s *MemorySessionStore) EnsureUser(_ context.Context, email string) (string, error) {
	email = utils.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if u, ok := s.users[email]; ok {
		u.LastSeen = now
		return email, nil
	}
	s.users[email] = &models.User{Email: email, Plan: models.UserPlanFree, Role: models.UserRoleMember, CreatedAt: now, LastSeen: now}
	return email, nil
}

// Authenticate implements businessflow.SessionStore
func (s *MemorySessionStore) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok || u.PasswordHash == "" {
		return nil, businessflow.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, businessflow.ErrInvalidCredentials
	}
	cp := *u
	return &cp, nil
}

// CreateUpload implements businessflow.SessionStore
func (s *MemorySessionStore) CreateUpload(_ context.Context, userEmail, filename, sheetName string, mapping models.ColumnMapping) (uint, error) {
	if s.FailCreateUpload != nil {
		return 0, s.FailCreateUpload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.uploads[s.nextID] = &models.Upload{
		ID:           s.nextID,
		UserEmail:    utils.NormalizeEmail(userEmail),
		Filename:     filename,
		SheetName:    sheetName,
		MappedConfig: mapping,
		CreatedAt:    time.Now().UTC().Add(time.Duration(s.nextID) * time.Millisecond),
	}
	return s.nextID, nil
}

// SaveContacts implements businessflow.SessionStore
func (s *MemorySessionStore) SaveContacts(_ context.Context, uploadID uint, _ string, contacts []models.Prospect) error {
	if s.FailSaveContacts != nil {
		return s.FailSaveContacts
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make(map[string]*storedContact, len(contacts))
	for i, p := range contacts {
		rows[p.ID] = &storedContact{prospect: p.WithEstado(p.Estado), row: i}
	}
	s.contacts[uploadID] = rows
	return nil
}

// UpdateContactStatus implements businessflow.SessionStore
func (s *MemorySessionStore) UpdateContactStatus(ctx context.Context, uploadID uint, contactID, status string) error {
	if s.StatusUpdateLatency > 0 {
		select {
		case <-time.After(s.StatusUpdateLatency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates++
	if s.FailStatusUpdate != nil {
		return s.FailStatusUpdate
	}
	c, ok := s.contacts[uploadID][contactID]
	if !ok {
		return businessflow.ErrContactNotFound
	}
	c.prospect.Estado = status
	return nil
}

// ListUploads implements businessflow.SessionStore
func (s *MemorySessionStore) ListUploads(_ context.Context, userEmail string, limit int) ([]models.UploadSummary, error) {
	userEmail = utils.NormalizeEmail(userEmail)
	policy := businessflow.StatusPolicy{ClosedKeywords: s.ClosedKeywords}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UploadSummary
	for id, u := range s.uploads {
		if u.UserEmail != userEmail {
			continue
		}
		sum := models.UploadSummary{ID: id, Filename: u.Filename, SheetName: u.SheetName, CreatedAt: u.CreatedAt}
		for _, c := range s.contacts[id] {
			sum.TotalContacts++
			if policy.IsClosed(c.prospect.Estado) {
				sum.ContactedCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Rehydrate implements businessflow.SessionStore
func (s *MemorySessionStore) Rehydrate(_ context.Context, uploadID uint) (*businessflow.RehydratedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[uploadID]
	if !ok {
		return nil, businessflow.ErrUploadNotFound
	}
	rows := make([]*storedContact, 0, len(s.contacts[uploadID]))
	for _, c := range s.contacts[uploadID] {
		rows = append(rows, c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].row < rows[j].row })

	contacts := make([]models.Prospect, 0, len(rows))
	for _, c := range rows {
		contacts = append(contacts, c.prospect.WithEstado(c.prospect.Estado))
	}
	return &businessflow.RehydratedSession{Upload: *u, Mapping: u.MappedConfig, Contacts: contacts}, nil
}

// GetTemplate implements businessflow.SessionStore
func (s *MemorySessionStore) GetTemplate(_ context.Context, email string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[utils.NormalizeEmail(email)]
	return t, ok, nil
}

// SaveTemplate implements businessflow.SessionStore
func (s *MemorySessionStore) SaveTemplate(_ context.Context, email, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[utils.NormalizeEmail(email)] = content
	return nil
}

// SetRecoveryCode implements businessflow.SessionStore
func (s *MemorySessionStore) SetRecoveryCode(_ context.Context, email, code string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[utils.NormalizeEmail(email)]
	if !ok {
		return businessflow.ErrUserNotFound
	}
	u.RecoveryCode = utils.ToPtr(code)
	u.RecoveryExpires = utils.ToPtr(expires)
	return nil
}

// ResetPassword implements businessflow.SessionStore
func (s *MemorySessionStore) ResetPassword(_ context.Context, email, code, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[utils.NormalizeEmail(email)]
	if !ok || u.RecoveryCode == nil || *u.RecoveryCode != code || u.RecoveryExpires == nil || time.Now().After(*u.RecoveryExpires) {
		return businessflow.ErrInvalidRecoveryCode
	}
	u.PasswordHash = passwordHash
	u.RecoveryCode = nil
	u.RecoveryExpires = nil
	return nil
}

// User returns a copy of the stored user, for assertions
func (s *MemorySessionStore) User(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// StatusOf returns the stored status of a contact, for assertions
func (s *MemorySessionStore) StatusOf(uploadID uint, contactID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contacts[uploadID][contactID]; ok {
		return c.prospect.Estado
	}
	return ""
}

// StatusUpdateCount returns how many status updates were attempted
func (s *MemorySessionStore) StatusUpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusUpdates
}
