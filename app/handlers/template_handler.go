package handlers

import (
	"strconv"

	"github.com/amirphl/humanflow/app/dto"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// TemplateHandlerInterface defines the contract for template handlers
type TemplateHandlerInterface interface {
	Get(c fiber.Ctx) error
	Save(c fiber.Ctx) error
}

// TemplateHandler handles the message template of the caller
type TemplateHandler struct {
	templateFlow businessflow.TemplateFlow
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templateFlow businessflow.TemplateFlow, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateFlow: templateFlow,
		validator:    validator.New(),
		logger:       logger,
	}
}

// Get returns the active template and the placeholders available
// @Summary Get Template
// @Tags Template
// @Produce json
// @Security BearerAuth
// @Param upload_id query int false "Upload whose columns provide the variables"
// @Success 200 {object} dto.APIResponse{data=dto.TemplateResponse}
// @Router /api/v1/template [get]
func (h *TemplateHandler) Get(c fiber.Ctx) error {
	var uploadID *uint
	if raw := c.Query("upload_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return invalidUploadID(c)
		}
		uid := uint(id)
		uploadID = &uid
	}

	ctx, cancel := createRequestContext(c, "/api/v1/template")
	defer cancel()

	result, err := h.templateFlow.GetTemplate(ctx, principal(c), uploadID)
	if err != nil {
		return flowError(c, h.logger, err, "TEMPLATE_LOAD_FAILED", "Failed to load template")
	}
	return SuccessResponse(c, fiber.StatusOK, "Template retrieved", result)
}

// Save stores the template of the caller
// @Summary Save Template
// @Tags Template
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SaveTemplateRequest true "Template content"
// @Success 200 {object} dto.APIResponse{data=dto.TemplateResponse}
// @Failure 422 {object} dto.APIResponse "Template too long"
// @Failure 503 {object} dto.APIResponse "Degraded session"
// @Router /api/v1/template [put]
func (h *TemplateHandler) Save(c fiber.Ctx) error {
	var req dto.SaveTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := createRequestContext(c, "/api/v1/template")
	defer cancel()

	if err := h.validator.Var(req.Content, "required"); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"content is required"})
	}

	// length is checked by the flow so the answer carries TEMPLATE_TOO_LONG
	result, err := h.templateFlow.SaveTemplate(ctx, principal(c), &req)
	if err != nil {
		return flowError(c, h.logger, err, "TEMPLATE_SAVE_FAILED", "Failed to save template")
	}
	return SuccessResponse(c, fiber.StatusOK, "Template saved", result)
}
