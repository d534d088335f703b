package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/humanflow/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// UploadRepositoryImpl implements UploadRepository interface
type UploadRepositoryImpl struct {
	*BaseRepository[models.Upload, struct{}]
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &UploadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Upload, struct{}](db),
	}
}

// ByID retrieves an upload by its ID
func (r *UploadRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Upload, error) {
	upload, err := first[models.Upload](r.getDB(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to find upload by ID %d: %w", id, err)
	}
	return upload, nil
}

// likeEscaper escapes LIKE wildcards with the default backslash escape character
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

const uploadSummaryQuery = `
SELECT u.id, u.filename, u.sheet_name, u.created_at,
       COUNT(c.id) AS total_contacts,
       COUNT(c.id) FILTER (WHERE c.status ILIKE ANY (?::text[])) AS contacted_count
FROM uploads u
LEFT JOIN contacts c ON c.upload_id = u.id
WHERE u.user_email = ?
GROUP BY u.id
ORDER BY u.created_at DESC, u.id DESC
LIMIT ?`

// ListSummaries returns the newest uploads of a user with their contact counters.
// A contact counts as contacted when its status contains any closed keyword.
func (r *UploadRepositoryImpl) ListSummaries(ctx context.Context, userEmail string, closedKeywords []string, limit int) ([]models.UploadSummary, error) {
	patterns := make([]string, 0, len(closedKeywords))
	for _, kw := range closedKeywords {
		patterns = append(patterns, "%"+likeEscaper.Replace(kw)+"%")
	}

	var rows []models.UploadSummary
	err := r.getDB(ctx).
		Raw(uploadSummaryQuery, pq.StringArray(patterns), userEmail, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return rows, nil
}
