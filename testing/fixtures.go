package testing

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/humanflow/models"
	"github.com/amirphl/humanflow/utils"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoTestDB marks a TestWithDB failure caused by a missing PostgreSQL server
var ErrNoTestDB = errors.New("test database unavailable")

// TestPassword is the password of every seeded user
const TestPassword = "correct-horse-battery"

// SeedUser stores a user with a bcrypt hash of TestPassword
func (s *MemorySessionStore) SeedUser(email string) models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("hash test password: %v", err))
	}
	return s.SeedUserWithHash(email, string(hash))
}

// SeedUserWithHash stores a user with an explicit password hash, legacy values included
func (s *MemorySessionStore) SeedUserWithHash(email, hash string) models.User {
	email = utils.NormalizeEmail(email)
	now := time.Now().UTC()
	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		Plan:         models.UserPlanFree,
		Role:         models.UserRoleMember,
		CreatedAt:    now,
		LastSeen:     now,
	}
	s.mu.Lock()
	s.users[email] = u
	s.mu.Unlock()
	return *u
}

// SampleGrid is a small sheet with a mix of valid and invalid rows
func SampleGrid() [][]string {
	return [][]string{
		{"Nombre", "WhatsApp", "Empresa", "Ciudad", "estado"},
		{"Ana", "555-111-2222", "Acme", "Lima", ""},
		{"", "+34 600 123 456", "Globex", "Madrid", "Cliente"},
		{"Luis", "123", "Initech", "Lima", ""},
		{"Marta", "(11) 98765-4321", "Acme", "Sao Paulo", "Pendiente"},
	}
}

// SampleMapping maps SampleGrid
func SampleMapping() models.ColumnMapping {
	return models.ColumnMapping{
		NameColumn:        "Nombre",
		PhoneColumn:       "WhatsApp",
		VisibleColumns:    []string{"Empresa"},
		FilterableColumns: []string{"Ciudad"},
	}
}
