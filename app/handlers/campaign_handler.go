package handlers

import (
	"strconv"
	"strings"

	"github.com/amirphl/humanflow/app/dto"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// filterQueryPrefix marks dashboard column filters in the query string, e.g. filter.Ciudad=Lima
	filterQueryPrefix = "filter."
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	Compute(c fiber.Ctx) error
	BuildLink(c fiber.Ctx) error
	ListUploads(c fiber.Ctx) error
	Resume(c fiber.Ctx) error
	Dashboard(c fiber.Ctx) error
	Send(c fiber.Ctx) error
	ResetSent(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// CampaignHandler handles dashboards, message links and saved uploads
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
		logger:       logger,
	}
}

func parseUploadID(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidUploadID(c fiber.Ctx) error {
	return ErrorResponse(c, fiber.StatusBadRequest, "Invalid upload id", "VALIDATION_ERROR", nil)
}

// Compute renders a dashboard over prospects held by the client
// @Summary Compute Dashboard
// @Tags Dashboard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DashboardComputeRequest true "Prospects, filters, sent ids and view"
// @Success 200 {object} dto.APIResponse{data=dto.DashboardResponse}
// @Router /api/v1/dashboard/compute [post]
func (h *CampaignHandler) Compute(c fiber.Ctx) error {
	var req dto.DashboardComputeRequest
	if ok, err := bindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/dashboard/compute")
	defer cancel()

	result, err := h.campaignFlow.Compute(ctx, principal(c), &req)
	if err != nil {
		return flowError(c, h.logger, err, "DASHBOARD_FAILED", "Failed to compute dashboard")
	}
	return SuccessResponse(c, fiber.StatusOK, "Dashboard computed", result)
}

// BuildLink renders the message link for one prospect held by the client
// @Summary Build Message Link
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BuildLinkRequest true "Template and prospect"
// @Success 200 {object} dto.APIResponse{data=dto.OutboundLinkResponse}
// @Router /api/v1/messages/link [post]
func (h *CampaignHandler) BuildLink(c fiber.Ctx) error {
	var req dto.BuildLinkRequest
	if ok, err := bindAndValidate(c, h.validator, &req); !ok {
		return err
	}
	if strings.TrimSpace(req.Contact.Telefono) == "" {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"telefono is required"})
	}

	ctx, cancel := createRequestContext(c, "/api/v1/messages/link")
	defer cancel()

	result, err := h.campaignFlow.BuildLink(ctx, principal(c), &req)
	if err != nil {
		return flowError(c, h.logger, err, "LINK_FAILED", "Failed to build message link")
	}
	return SuccessResponse(c, fiber.StatusOK, "Message link built", result)
}

// ListUploads returns the latest uploads of the caller
// @Summary Upload History
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UploadHistoryResponse}
// @Failure 503 {object} dto.APIResponse "Degraded session"
// @Router /api/v1/uploads [get]
func (h *CampaignHandler) ListUploads(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/uploads")
	defer cancel()

	result, err := h.campaignFlow.ListUploads(ctx, principal(c))
	if err != nil {
		return flowError(c, h.logger, err, "LIST_UPLOADS_FAILED", "Failed to list uploads")
	}
	return SuccessResponse(c, fiber.StatusOK, "Uploads retrieved", result)
}

// Resume reloads a saved upload with its current statuses
// @Summary Resume Upload
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Upload ID"
// @Success 200 {object} dto.APIResponse{data=dto.ResumeResponse}
// @Failure 404 {object} dto.APIResponse "Upload not found"
// @Router /api/v1/uploads/{id} [get]
func (h *CampaignHandler) Resume(c fiber.Ctx) error {
	uploadID, ok := parseUploadID(c)
	if !ok {
		return invalidUploadID(c)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/uploads/:id")
	defer cancel()

	result, err := h.campaignFlow.Resume(ctx, principal(c), uploadID)
	if err != nil {
		return flowError(c, h.logger, err, "REHYDRATE_FAILED", "Failed to load upload")
	}
	return SuccessResponse(c, fiber.StatusOK, "Upload loaded", result)
}

// Dashboard renders a saved upload. Column filters are passed as filter.<column>=<value>.
// @Summary Upload Dashboard
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Upload ID"
// @Param view query string false "active or sent"
// @Success 200 {object} dto.APIResponse{data=dto.DashboardResponse}
// @Router /api/v1/uploads/{id}/dashboard [get]
func (h *CampaignHandler) Dashboard(c fiber.Ctx) error {
	uploadID, ok := parseUploadID(c)
	if !ok {
		return invalidUploadID(c)
	}

	query := dto.DashboardQuery{View: c.Query("view"), Filters: map[string]string{}}
	for key, value := range c.Queries() {
		if col, found := strings.CutPrefix(key, filterQueryPrefix); found && col != "" {
			query.Filters[col] = value
		}
	}

	ctx, cancel := createRequestContext(c, "/api/v1/uploads/:id/dashboard")
	defer cancel()

	result, err := h.campaignFlow.Dashboard(ctx, principal(c), uploadID, query)
	if err != nil {
		return flowError(c, h.logger, err, "DASHBOARD_FAILED", "Failed to compute dashboard")
	}
	return SuccessResponse(c, fiber.StatusOK, "Dashboard computed", result)
}

// Send builds the message link for a saved prospect and marks it as contacted
// @Summary Send Message
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Upload ID"
// @Param contactId path string true "Contact ID"
// @Param request body dto.SendRequest false "Optional template override"
// @Success 200 {object} dto.APIResponse{data=dto.OutboundLinkResponse}
// @Failure 404 {object} dto.APIResponse "Upload or contact not found"
// @Router /api/v1/uploads/{id}/contacts/{contactId}/send [post]
func (h *CampaignHandler) Send(c fiber.Ctx) error {
	uploadID, ok := parseUploadID(c)
	if !ok {
		return invalidUploadID(c)
	}
	contactID := c.Params("contactId")
	if contactID == "" {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid contact id", "VALIDATION_ERROR", nil)
	}

	var req dto.SendRequest
	if len(c.Body()) > 0 {
		if ok, err := bindAndValidate(c, h.validator, &req); !ok {
			return err
		}
	}

	ctx, cancel := createRequestContext(c, "/api/v1/uploads/:id/contacts/:contactId/send")
	defer cancel()

	result, err := h.campaignFlow.Send(ctx, principal(c), uploadID, contactID, &req)
	if err != nil {
		return flowError(c, h.logger, err, "SEND_FAILED", "Failed to send message")
	}
	return SuccessResponse(c, fiber.StatusOK, "Message link built", result)
}

// ResetSent clears the session sent set of an upload
// @Summary Reset Sent Contacts
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Upload ID"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/uploads/{id}/sent [delete]
func (h *CampaignHandler) ResetSent(c fiber.Ctx) error {
	uploadID, ok := parseUploadID(c)
	if !ok {
		return invalidUploadID(c)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/uploads/:id/sent")
	defer cancel()

	if err := h.campaignFlow.ResetSent(ctx, principal(c), uploadID); err != nil {
		return flowError(c, h.logger, err, "RESET_SENT_FAILED", "Failed to reset sent contacts")
	}
	return SuccessResponse(c, fiber.StatusOK, "Sent contacts reset", nil)
}

// Export downloads the prospects of an upload with their current statuses
// @Summary Export Upload
// @Tags Uploads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Upload ID"
// @Success 200 {file} file
// @Router /api/v1/uploads/{id}/export [get]
func (h *CampaignHandler) Export(c fiber.Ctx) error {
	uploadID, ok := parseUploadID(c)
	if !ok {
		return invalidUploadID(c)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/uploads/:id/export")
	defer cancel()

	buf, filename, err := h.campaignFlow.Export(ctx, principal(c), uploadID)
	if err != nil {
		return flowError(c, h.logger, err, "EXPORT_FAILED", "Failed to export contacts")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+strings.ReplaceAll(filename, `"`, "")+`"`)
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}
