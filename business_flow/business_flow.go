// Package businessflow contains the business logic for the application.
package businessflow

import (
	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/models"
	"github.com/amirphl/humanflow/utils"
)

// Principal is the authenticated caller of a flow
type Principal struct {
	Email    string
	Degraded bool
}

// CanPersist reports whether the caller's work may be written to the session store
func (p Principal) CanPersist() bool {
	return !p.Degraded && p.Email != ""
}

// StatusUpdate is one contact status write handed to the background dispatcher
type StatusUpdate struct {
	UploadID  uint
	ContactID string
	Status    string
	UserEmail string
}

// StatusSink accepts status updates for asynchronous persistence. Enqueue
// returns false when the update was dropped.
type StatusSink interface {
	Enqueue(update StatusUpdate) bool
}

// DomainMetrics records the domain counters of the import and send flows
type DomainMetrics interface {
	ContactsImported(n int)
	RowsSkipped(n int)
	MessageSent()
	StatusUpdateFailed()
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) ContactsImported(int) {}
func (NopMetrics) RowsSkipped(int)      {}
func (NopMetrics) MessageSent()         {}
func (NopMetrics) StatusUpdateFailed()  {}

// ToUserInfo converts a user model to the public user representation
func ToUserInfo(user models.User) dto.UserInfo {
	return dto.UserInfo{
		Email:       user.Email,
		Name:        user.Name,
		CompanyName: user.CompanyName,
		LogoURL:     user.LogoURL,
		Plan:        user.Plan,
		Role:        user.Role,
	}
}

// ToDashboardStatsDTO converts dashboard counters for responses
func ToDashboardStatsDTO(stats DashboardStats) dto.DashboardStatsDTO {
	return dto.DashboardStatsDTO{
		Total:            stats.Total,
		Pending:          stats.Pending,
		SessionSentCount: stats.SessionSentCount,
		ContactedTotal:   stats.ContactedTotal,
		TotalDatabase:    stats.TotalDatabase,
		ProgressPercent:  stats.ProgressPercent,
	}
}

// degradedUser is the transient identity of a degraded session
func degradedUser(email string) *models.User {
	return &models.User{
		Email: utils.NormalizeEmail(email),
		Plan:  models.UserPlanFree,
		Role:  models.UserRoleMember,
	}
}
