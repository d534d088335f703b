package handlers

import (
	"github.com/amirphl/humanflow/app/dto"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ImportHandlerInterface defines the contract for workbook import handlers
type ImportHandlerInterface interface {
	Preview(c fiber.Ctx) error
	Confirm(c fiber.Ctx) error
}

// ImportHandler handles workbook uploads and mapping confirmation
type ImportHandler struct {
	importFlow businessflow.ImportFlow
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importFlow businessflow.ImportFlow, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importFlow: importFlow,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Preview reads an uploaded workbook and suggests a column mapping per sheet
// @Summary Preview Workbook
// @Description Upload an xlsx, xls or csv file as the multipart field "file"
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Workbook"
// @Success 200 {object} dto.APIResponse{data=dto.ImportPreviewResponse}
// @Failure 400 {object} dto.APIResponse "Unreadable workbook"
// @Failure 413 {object} dto.APIResponse "File too large"
// @Failure 422 {object} dto.APIResponse "Empty workbook"
// @Router /api/v1/imports/preview [post]
func (h *ImportHandler) Preview(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "A workbook file is required", "FILE_REQUIRED", nil)
	}
	file, err := fh.Open()
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Failed to read the uploaded file", "WORKBOOK_UNREADABLE", nil)
	}
	defer func() { _ = file.Close() }()

	ctx, cancel := createRequestContext(c, "/api/v1/imports/preview")
	defer cancel()

	result, err := h.importFlow.Preview(ctx, principal(c), fh.Filename, file)
	if err != nil {
		return flowError(c, h.logger, err, "PREVIEW_FAILED", "Failed to preview workbook")
	}
	return SuccessResponse(c, fiber.StatusOK, "Workbook loaded", result)
}

// Confirm extracts the prospects of the chosen sheet and persists them when possible
// @Summary Confirm Import
// @Tags Imports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ImportConfirmRequest true "Sheet and column mapping"
// @Success 200 {object} dto.APIResponse{data=dto.ImportConfirmResponse} "Contacts extracted; persisted=false with a warning when saving failed"
// @Failure 404 {object} dto.APIResponse "Import token unknown or expired"
// @Failure 422 {object} dto.APIResponse "Invalid mapping"
// @Router /api/v1/imports/confirm [post]
func (h *ImportHandler) Confirm(c fiber.Ctx) error {
	var req dto.ImportConfirmRequest
	if ok, err := bindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/imports/confirm")
	defer cancel()

	result, err := h.importFlow.Confirm(ctx, principal(c), &req)
	if err != nil {
		return flowError(c, h.logger, err, "IMPORT_FAILED", "Failed to import contacts")
	}

	message := "Contacts imported"
	if !result.Persisted {
		message = "Contacts imported, " + result.Warning
	}
	return SuccessResponse(c, fiber.StatusOK, message, result)
}
