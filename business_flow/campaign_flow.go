// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/config"
	"github.com/amirphl/humanflow/models"
	"go.uber.org/zap"
)

// CampaignFlow handles dashboards, message links and persisted campaign sessions
type CampaignFlow interface {
	Compute(ctx context.Context, principal Principal, req *dto.DashboardComputeRequest) (*dto.DashboardResponse, error)
	BuildLink(ctx context.Context, principal Principal, req *dto.BuildLinkRequest) (*dto.OutboundLinkResponse, error)
	ListUploads(ctx context.Context, principal Principal) (*dto.UploadHistoryResponse, error)
	Resume(ctx context.Context, principal Principal, uploadID uint) (*dto.ResumeResponse, error)
	Dashboard(ctx context.Context, principal Principal, uploadID uint, query dto.DashboardQuery) (*dto.DashboardResponse, error)
	Send(ctx context.Context, principal Principal, uploadID uint, contactID string, req *dto.SendRequest) (*dto.OutboundLinkResponse, error)
	ResetSent(ctx context.Context, principal Principal, uploadID uint) error
	Export(ctx context.Context, principal Principal, uploadID uint) (*bytes.Buffer, string, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	store        SessionStore
	sentSets     SentSetStore
	templates    TemplateFlow
	statusSink   StatusSink
	links        LinkBuilder
	dashboard    *Dashboard
	historyLimit int
	metrics      DomainMetrics
	logger       *zap.Logger
}

// NewCampaignFlow creates a new campaign flow instance. store may be nil when
// no primary database is configured; statusSink may be nil to write statuses inline.
func NewCampaignFlow(
	store SessionStore,
	sentSets SentSetStore,
	templates TemplateFlow,
	statusSink StatusSink,
	statusConfig config.StatusConfig,
	msgConfig config.MessagingConfig,
	sessionConfig config.SessionConfig,
	metrics DomainMetrics,
	logger *zap.Logger,
) CampaignFlow {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CampaignFlowImpl{
		store:      store,
		sentSets:   sentSets,
		templates:  templates,
		statusSink: statusSink,
		links: LinkBuilder{
			BaseURL:        msgConfig.BaseURL,
			ContactedLabel: statusConfig.Contacted,
		},
		dashboard:    NewDashboard(StatusPolicy{ClosedKeywords: statusConfig.ClosedKeywords}),
		historyLimit: sessionConfig.HistoryLimit,
		metrics:      metrics,
		logger:       logger,
	}
}

// Compute renders a dashboard view over prospects held by the client
func (f *CampaignFlowImpl) Compute(ctx context.Context, principal Principal, req *dto.DashboardComputeRequest) (*dto.DashboardResponse, error) {
	sent := NewSentSet(req.SentIDs...)
	resp := f.view(req.Contacts, req.FilterableColumns, req.Filters, sent, ParseViewFilter(req.View))
	return resp, nil
}

// BuildLink renders a message for a prospect held by the client. Nothing is persisted.
func (f *CampaignFlowImpl) BuildLink(ctx context.Context, principal Principal, req *dto.BuildLinkRequest) (*dto.OutboundLinkResponse, error) {
	template := req.Template
	if strings.TrimSpace(template) == "" {
		var err error
		if template, err = f.templates.ActiveTemplate(ctx, principal); err != nil {
			return nil, err
		}
	}
	link := f.links.BuildAndMark(template, req.Contact)
	f.metrics.MessageSent()
	return &dto.OutboundLinkResponse{
		URL:     link.URL,
		Message: link.Message,
		Contact: link.Contact,
	}, nil
}

// ListUploads returns the latest uploads of the principal
func (f *CampaignFlowImpl) ListUploads(ctx context.Context, principal Principal) (*dto.UploadHistoryResponse, error) {
	if !principal.CanPersist() || f.store == nil {
		return nil, NewBusinessError("PERSISTENCE_UNAVAILABLE", "History is not available in this session", ErrPersistenceDisabled)
	}
	uploads, err := f.store.ListUploads(ctx, principal.Email, f.historyLimit)
	if err != nil {
		return nil, NewBusinessError("LIST_UPLOADS_FAILED", "Failed to list uploads", err)
	}
	if uploads == nil {
		uploads = []models.UploadSummary{}
	}
	return &dto.UploadHistoryResponse{Uploads: uploads}, nil
}

// Resume reloads a persisted upload with its current statuses and session sent set
func (f *CampaignFlowImpl) Resume(ctx context.Context, principal Principal, uploadID uint) (*dto.ResumeResponse, error) {
	session, err := loadOwnedSession(ctx, f.store, principal, uploadID)
	if err != nil {
		return nil, err
	}
	sent := f.members(ctx, principal, uploadID)

	return &dto.ResumeResponse{
		UploadID:      uploadID,
		Filename:      session.Upload.Filename,
		Sheet:         session.Upload.SheetName,
		Mapping:       session.Mapping,
		Contacts:      session.Contacts,
		Variables:     TemplateVariables(session.Contacts),
		FilterOptions: f.dashboard.FilterOptions(session.Contacts, session.Mapping.FilterableColumns),
		SentIDs:       sortedIDs(sent),
		Stats:         ToDashboardStatsDTO(f.dashboard.Stats(session.Contacts, nil, sent)),
	}, nil
}

// Dashboard renders a view over a persisted upload using the session sent set
func (f *CampaignFlowImpl) Dashboard(ctx context.Context, principal Principal, uploadID uint, query dto.DashboardQuery) (*dto.DashboardResponse, error) {
	session, err := loadOwnedSession(ctx, f.store, principal, uploadID)
	if err != nil {
		return nil, err
	}
	sent := f.members(ctx, principal, uploadID)

	resp := f.view(session.Contacts, session.Mapping.FilterableColumns, query.Filters, sent, ParseViewFilter(query.View))
	resp.UploadID = &uploadID
	return resp, nil
}

// Send builds the message link for one persisted prospect, records it in the
// sent set and hands the status change to the dispatcher
func (f *CampaignFlowImpl) Send(ctx context.Context, principal Principal, uploadID uint, contactID string, req *dto.SendRequest) (*dto.OutboundLinkResponse, error) {
	session, err := loadOwnedSession(ctx, f.store, principal, uploadID)
	if err != nil {
		return nil, err
	}

	var (
		contact models.Prospect
		found   bool
	)
	for _, p := range session.Contacts {
		if p.ID == contactID {
			contact, found = p, true
			break
		}
	}
	if !found {
		return nil, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}

	template := ""
	if req != nil {
		template = req.Template
	}
	if strings.TrimSpace(template) == "" {
		if template, err = f.templates.ActiveTemplate(ctx, principal); err != nil {
			return nil, err
		}
	}

	link := f.links.BuildAndMark(template, contact)
	f.metrics.MessageSent()

	if err := f.sentSets.Add(ctx, SentScope(principal.Email, uploadID), contactID); err != nil {
		f.logger.Warn("Failed to record sent contact",
			zap.Uint("upload_id", uploadID),
			zap.String("contact_id", contactID),
			zap.Error(err))
	}

	update := StatusUpdate{
		UploadID:  uploadID,
		ContactID: contactID,
		Status:    link.Contact.Estado,
		UserEmail: principal.Email,
	}
	queued := f.dispatch(ctx, update)

	return &dto.OutboundLinkResponse{
		URL:     link.URL,
		Message: link.Message,
		Contact: link.Contact,
		Queued:  queued,
	}, nil
}

// dispatch hands the update to the sink, or writes it inline without one.
// Failures are logged and swallowed.
func (f *CampaignFlowImpl) dispatch(ctx context.Context, update StatusUpdate) bool {
	if f.statusSink != nil {
		return f.statusSink.Enqueue(update)
	}
	if err := f.store.UpdateContactStatus(ctx, update.UploadID, update.ContactID, update.Status); err != nil {
		f.metrics.StatusUpdateFailed()
		f.logger.Warn("Contact status update failed",
			zap.Uint("upload_id", update.UploadID),
			zap.String("contact_id", update.ContactID),
			zap.Error(err))
		return false
	}
	return true
}

// ResetSent clears the session sent set of an upload
func (f *CampaignFlowImpl) ResetSent(ctx context.Context, principal Principal, uploadID uint) error {
	if _, err := loadOwnedSession(ctx, f.store, principal, uploadID); err != nil {
		return err
	}
	if err := f.sentSets.Reset(ctx, SentScope(principal.Email, uploadID)); err != nil {
		return NewBusinessError("RESET_SENT_FAILED", "Failed to reset sent contacts", err)
	}
	return nil
}

// Export writes the prospects of an upload with their current statuses to an xlsx workbook
func (f *CampaignFlowImpl) Export(ctx context.Context, principal Principal, uploadID uint) (*bytes.Buffer, string, error) {
	session, err := loadOwnedSession(ctx, f.store, principal, uploadID)
	if err != nil {
		return nil, "", err
	}
	buf, err := ExportContacts(session.Contacts, session.Mapping)
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to export contacts", err)
	}
	base := strings.TrimSuffix(session.Upload.Filename, filepath.Ext(session.Upload.Filename))
	if base == "" {
		base = "contacts"
	}
	return buf, base + "-humanflow.xlsx", nil
}

func (f *CampaignFlowImpl) members(ctx context.Context, principal Principal, uploadID uint) SentSet {
	sent, err := f.sentSets.Members(ctx, SentScope(principal.Email, uploadID))
	if err != nil {
		f.logger.Warn("Failed to load sent contacts", zap.Uint("upload_id", uploadID), zap.Error(err))
		return NewSentSet()
	}
	return sent
}

func (f *CampaignFlowImpl) view(contacts []models.Prospect, filterable []string, filters map[string]string, sent SentSet, view ViewFilter) *dto.DashboardResponse {
	filtered := f.dashboard.ApplyColumnFilters(contacts, filters)
	visible := f.dashboard.Partition(filtered, sent, view)

	rows := make([]dto.ProspectView, 0, len(visible))
	for _, p := range visible {
		rows = append(rows, dto.ProspectView{
			Prospect: p,
			Badge:    string(ClassifyStatus(p.Estado)),
			Sent:     sent.Has(p.ID),
		})
	}

	return &dto.DashboardResponse{
		View:          string(view),
		Contacts:      rows,
		Stats:         ToDashboardStatsDTO(f.dashboard.Stats(contacts, filters, sent)),
		FilterOptions: f.dashboard.FilterOptions(contacts, filterable),
		SentIDs:       sortedIDs(sent),
	}
}

// loadOwnedSession rehydrates an upload after checking that principal owns it
func loadOwnedSession(ctx context.Context, store SessionStore, principal Principal, uploadID uint) (*RehydratedSession, error) {
	if !principal.CanPersist() || store == nil {
		return nil, NewBusinessError("PERSISTENCE_UNAVAILABLE", "Saved uploads are not available in this session", ErrPersistenceDisabled)
	}
	session, err := store.Rehydrate(ctx, uploadID)
	if err != nil {
		if IsUploadNotFound(err) {
			return nil, NewBusinessError("UPLOAD_NOT_FOUND", "Upload not found", err)
		}
		return nil, NewBusinessError("REHYDRATE_FAILED", "Failed to load upload", err)
	}
	if session.Upload.UserEmail != principal.Email {
		// never reveal other users' uploads
		return nil, NewBusinessError("UPLOAD_NOT_FOUND", "Upload not found", ErrUploadAccessDenied)
	}
	return session, nil
}

func sortedIDs(sent SentSet) []string {
	ids := make([]string, 0, len(sent))
	for id := range sent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
