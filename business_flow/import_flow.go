package businessflow

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/config"
	"github.com/amirphl/humanflow/models"
	"go.uber.org/zap"
)

const (
	// WarningSavedLocally is returned when extracted contacts could not be persisted
	WarningSavedLocally = "saved locally only"

	previewSampleRows = 3
)

// ImportFlow turns uploaded workbooks into prospect lists
type ImportFlow interface {
	Preview(ctx context.Context, principal Principal, filename string, r io.Reader) (*dto.ImportPreviewResponse, error)
	Confirm(ctx context.Context, principal Principal, req *dto.ImportConfirmRequest) (*dto.ImportConfirmResponse, error)
}

// ImportFlowImpl implements the import business flow
type ImportFlowImpl struct {
	cache        WorkbookCache
	store        SessionStore
	importConfig config.ImportConfig
	dashboard    *Dashboard
	metrics      DomainMetrics
	logger       *zap.Logger
}

// NewImportFlow creates a new import flow instance. store may be nil when no
// primary database is configured.
func NewImportFlow(
	cache WorkbookCache,
	store SessionStore,
	importConfig config.ImportConfig,
	statusConfig config.StatusConfig,
	metrics DomainMetrics,
	logger *zap.Logger,
) ImportFlow {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ImportFlowImpl{
		cache:        cache,
		store:        store,
		importConfig: importConfig,
		dashboard:    NewDashboard(StatusPolicy{ClosedKeywords: statusConfig.ClosedKeywords}),
		metrics:      metrics,
		logger:       logger,
	}
}

func (f *ImportFlowImpl) keywords() MappingKeywords {
	return MappingKeywords{Name: f.importConfig.NameKeywords, Phone: f.importConfig.PhoneKeywords}
}

// Preview parses the workbook, keeps it under a new import token and
// describes every sheet with a suggested mapping
func (f *ImportFlowImpl) Preview(ctx context.Context, principal Principal, filename string, r io.Reader) (*dto.ImportPreviewResponse, error) {
	limit := int64(f.importConfig.MaxFileSize)
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, NewBusinessError("WORKBOOK_UNREADABLE", "Failed to read uploaded file", &ParseError{Kind: ParseUnreadable, Filename: filename, Err: err})
	}
	if int64(len(data)) > limit {
		return nil, NewBusinessError("FILE_TOO_LARGE", "File exceeds the maximum upload size", ErrFileTooLarge)
	}

	wb, err := ReadWorkbook(filename, bytes.NewReader(data))
	if err != nil {
		if IsWorkbookEmpty(err) {
			return nil, NewBusinessError("WORKBOOK_EMPTY", "Workbook has no sheets", err)
		}
		return nil, NewBusinessError("WORKBOOK_UNREADABLE", "Workbook could not be read", err)
	}

	token, err := f.cache.Put(ctx, &CachedImport{
		Owner:     principal.Email,
		Filename:  filename,
		Workbook:  wb,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, NewBusinessError("IMPORT_CACHE_FAILED", "Failed to keep the uploaded workbook", err)
	}

	sheets := make([]dto.SheetPreview, 0, len(wb.SheetNames))
	for _, name := range wb.SheetNames {
		headers := wb.Headers(name)
		suggestion := SuggestColumns(headers, f.keywords())
		sheets = append(sheets, dto.SheetPreview{
			Name:     name,
			Headers:  headers,
			RowCount: wb.RowCount(name),
			Suggestion: dto.ColumnSuggestionDTO{
				NameGuess:  suggestion.NameGuess,
				PhoneGuess: suggestion.PhoneGuess,
			},
			SampleRows: sampleRows(wb.Grids[name], previewSampleRows),
		})
	}

	f.logger.Info("Workbook previewed",
		zap.String("email", principal.Email),
		zap.String("filename", filename),
		zap.Int("sheets", len(sheets)))

	return &dto.ImportPreviewResponse{
		ImportToken: token,
		Filename:    filename,
		Sheets:      sheets,
		ExpiresIn:   int(f.importConfig.WorkbookTTL.Seconds()),
	}, nil
}

// Confirm validates the mapping of a previewed sheet, extracts its prospects
// and persists them when the session allows it. A failed save still returns
// the prospects, flagged as not persisted.
func (f *ImportFlowImpl) Confirm(ctx context.Context, principal Principal, req *dto.ImportConfirmRequest) (*dto.ImportConfirmResponse, error) {
	entry, err := f.cache.Get(ctx, req.ImportToken)
	if err != nil {
		if IsImportNotFound(err) {
			return nil, NewBusinessError("IMPORT_NOT_FOUND", "Import expired, upload the file again", err)
		}
		return nil, NewBusinessError("IMPORT_CACHE_FAILED", "Failed to load the uploaded workbook", err)
	}
	if entry.Owner != principal.Email {
		return nil, NewBusinessError("IMPORT_NOT_FOUND", "Import expired, upload the file again", ErrImportNotFound)
	}

	grid, err := entry.Workbook.Sheet(req.Sheet)
	if err != nil {
		return nil, NewBusinessError("MAPPING_INVALID", "Sheet not found", err)
	}

	selection := NewMappingSelection(req.Sheet, entry.Workbook.Headers(req.Sheet), f.keywords())
	if name := strings.TrimSpace(req.NameColumn); name != "" {
		selection.NameColumn = name
	}
	if phone := strings.TrimSpace(req.PhoneColumn); phone != "" {
		selection.PhoneColumn = phone
	}
	selection.VisibleColumns = req.VisibleColumns
	selection.FilterableColumns = req.FilterableColumns

	mapping, err := selection.Confirm()
	if err != nil {
		return nil, NewBusinessError("MAPPING_INVALID", "Column mapping is invalid", err)
	}

	result := ExtractContacts(grid, mapping, ExtractOptions{
		MinPhoneDigits: f.importConfig.MinPhoneDigits,
		DefaultName:    f.importConfig.DefaultName,
		DefaultStatus:  f.importConfig.DefaultStatus,
	})
	f.metrics.ContactsImported(len(result.Contacts))
	f.metrics.RowsSkipped(result.Skipped)
	if result.Skipped > 0 {
		f.logger.Info("Rows skipped during extraction",
			zap.String("email", principal.Email),
			zap.String("filename", entry.Filename),
			zap.String("sheet", req.Sheet),
			zap.Int("skipped", result.Skipped),
			zap.Int("total_rows", result.TotalRows))
	}

	resp := &dto.ImportConfirmResponse{
		Filename:      entry.Filename,
		Sheet:         req.Sheet,
		Mapping:       mapping,
		Contacts:      result.Contacts,
		Skipped:       result.Skipped,
		TotalRows:     result.TotalRows,
		Variables:     TemplateVariables(result.Contacts),
		FilterOptions: f.dashboard.FilterOptions(result.Contacts, mapping.FilterableColumns),
		Stats:         ToDashboardStatsDTO(f.dashboard.Stats(result.Contacts, nil, NewSentSet())),
	}

	if !principal.CanPersist() || f.store == nil {
		resp.Warning = WarningSavedLocally
		return resp, nil
	}

	uploadID, err := f.persist(ctx, principal.Email, entry.Filename, req.Sheet, mapping, result.Contacts)
	if err != nil {
		f.logger.Error("Failed to persist import",
			zap.String("email", principal.Email),
			zap.String("filename", entry.Filename),
			zap.Int("contacts", len(result.Contacts)),
			zap.Error(err))
		resp.Warning = WarningSavedLocally
		return resp, nil
	}

	if err := f.cache.Delete(ctx, req.ImportToken); err != nil {
		f.logger.Warn("Failed to drop confirmed import", zap.String("token", req.ImportToken), zap.Error(err))
	}

	resp.UploadID = &uploadID
	resp.Persisted = true
	return resp, nil
}

func (f *ImportFlowImpl) persist(ctx context.Context, email, filename, sheet string, mapping models.ColumnMapping, contacts []models.Prospect) (uint, error) {
	uploadID, err := f.store.CreateUpload(ctx, email, filename, sheet, mapping)
	if err != nil {
		return 0, err
	}
	if err := f.store.SaveContacts(ctx, uploadID, email, contacts); err != nil {
		return 0, err
	}
	return uploadID, nil
}

// sampleRows returns up to n data rows of grid
func sampleRows(grid [][]string, n int) [][]string {
	if len(grid) <= 1 {
		return nil
	}
	rows := grid[1:]
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
