package businessflow

import (
	"math"
	"sort"
	"strings"

	"github.com/amirphl/humanflow/models"
)

// ViewFilter selects one side of the active/sent partition
type ViewFilter string

const (
	ViewActive ViewFilter = "active"
	ViewSent   ViewFilter = "sent"
)

// ParseViewFilter maps a request value to a ViewFilter, defaulting to active
func ParseViewFilter(s string) ViewFilter {
	if ViewFilter(strings.ToLower(strings.TrimSpace(s))) == ViewSent {
		return ViewSent
	}
	return ViewActive
}

// StatusBadge is the display class of a free-text status
type StatusBadge string

const (
	BadgeContacted StatusBadge = "contacted"
	BadgePending   StatusBadge = "pending"
	BadgeWon       StatusBadge = "won"
	BadgeLost      StatusBadge = "lost"
	BadgeNew       StatusBadge = "new"
)

// SentSet holds the ids of prospects messaged during the current session
type SentSet map[string]struct{}

// NewSentSet builds a set from ids
func NewSentSet(ids ...string) SentSet {
	s := make(SentSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set is empty.
func (s SentSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// StatusPolicy decides which statuses count as closed
type StatusPolicy struct {
	ClosedKeywords []string
}

// IsClosed reports whether the lower-cased status contains a closed keyword
func (p StatusPolicy) IsClosed(estado string) bool {
	lower := strings.ToLower(estado)
	for _, kw := range p.ClosedKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DashboardStats are the counters shown above the contact list.
// Pending always equals Total - ContactedTotal.
type DashboardStats struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	SessionSentCount int `json:"session_sent_count"`
	ContactedTotal   int `json:"contacted_total"`
	TotalDatabase    int `json:"total_database"`
	ProgressPercent  int `json:"progress_percent"`
}

// Dashboard derives view state from an in-memory prospect list
type Dashboard struct {
	policy StatusPolicy
}

// NewDashboard creates a dashboard using the given status policy
func NewDashboard(policy StatusPolicy) *Dashboard {
	return &Dashboard{policy: policy}
}

// ApplyColumnFilters keeps prospects whose field equals the filter value for
// every filtered column. Empty filter values match everything.
func (d *Dashboard) ApplyColumnFilters(prospects []models.Prospect, filters map[string]string) []models.Prospect {
	out := make([]models.Prospect, 0, len(prospects))
	for _, p := range prospects {
		if matchesFilters(p, filters) {
			out = append(out, p)
		}
	}
	return out
}

func matchesFilters(p models.Prospect, filters map[string]string) bool {
	for col, want := range filters {
		if want == "" {
			continue
		}
		if p.Field(col) != want {
			return false
		}
	}
	return true
}

// IsDone reports whether the prospect was messaged in this session or carries a closed status
func (d *Dashboard) IsDone(p models.Prospect, sent SentSet) bool {
	return sent.Has(p.ID) || d.policy.IsClosed(p.Estado)
}

// Partition returns the not-done prospects for ViewActive and the done ones for ViewSent
func (d *Dashboard) Partition(prospects []models.Prospect, sent SentSet, view ViewFilter) []models.Prospect {
	wantDone := view == ViewSent
	out := make([]models.Prospect, 0, len(prospects))
	for _, p := range prospects {
		if d.IsDone(p, sent) == wantDone {
			out = append(out, p)
		}
	}
	return out
}

// Stats computes the counters over the column-filtered prospects.
// SessionSentCount is the size of the whole sent set, filters aside.
func (d *Dashboard) Stats(prospects []models.Prospect, filters map[string]string, sent SentSet) DashboardStats {
	filtered := d.ApplyColumnFilters(prospects, filters)

	stats := DashboardStats{
		Total:            len(filtered),
		TotalDatabase:    len(prospects),
		SessionSentCount: len(sent),
	}
	for _, p := range filtered {
		if d.IsDone(p, sent) {
			stats.ContactedTotal++
		}
	}
	stats.Pending = stats.Total - stats.ContactedTotal
	if stats.Total > 0 {
		stats.ProgressPercent = int(math.Round(float64(stats.ContactedTotal) / float64(stats.Total) * 100))
	}
	return stats
}

// FilterOptions returns, per column, the sorted distinct non-empty values found in prospects
func (d *Dashboard) FilterOptions(prospects []models.Prospect, columns []string) map[string][]string {
	options := make(map[string][]string, len(columns))
	for _, col := range columns {
		seen := make(map[string]struct{})
		for _, p := range prospects {
			if v := strings.TrimSpace(p.Field(col)); v != "" {
				seen[v] = struct{}{}
			}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		options[col] = values
	}
	return options
}

// ClassifyStatus maps a free-text status to its badge
func ClassifyStatus(estado string) StatusBadge {
	s := strings.ToLower(strings.TrimSpace(estado))
	switch {
	case strings.Contains(s, "contactado"):
		return BadgeContacted
	case strings.Contains(s, "pendiente"):
		return BadgePending
	case strings.Contains(s, "éxito"), strings.Contains(s, "exito"),
		strings.Contains(s, "cliente"), strings.Contains(s, "ganado"):
		return BadgeWon
	case strings.Contains(s, "perdido"), s == "no":
		return BadgeLost
	}
	return BadgeNew
}
