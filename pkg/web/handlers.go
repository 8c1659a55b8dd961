package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/leadflow/pkg/assistant"
	"github.com/dukex/leadflow/pkg/extraction"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	leadService *services.Lead
	engine      *workflow.Engine
	assistant   *assistant.Service
	extractor   *extraction.Service
	validator   *validator.Validate
}

func NewAPIHandlers(
	leadService *services.Lead,
	engine *workflow.Engine,
	assistantService *assistant.Service,
	extractor *extraction.Service,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		leadService: leadService,
		engine:      engine,
		assistant:   assistantService,
		extractor:   extractor,
		validator:   validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck, storeOk := h.leadService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Leadflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if storeOk {
		status = "healthy"
		message = "Leadflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"leads": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) DefineWorkflow(c fiber.Ctx) error {
	var req DefineWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def, err := req.Definition()
	if err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.engine.Define(c.Context(), def)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "Graph updated",
		"version": saved.Version,
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	def, err := h.engine.Current(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(def)
}

// RunWorkflow runs the current definition. Failures keep the {status, message} payload.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	result, err := h.engine.Run(c.Context())
	if err != nil {
		httpStatus := fiber.StatusInternalServerError
		if workflow.IsGraphCompilationError(err) {
			httpStatus = fiber.StatusUnprocessableEntity
		}

		return c.Status(httpStatus).JSON(RunWorkflowError{Status: "error", Message: err.Error()})
	}

	return c.JSON(RunWorkflowResponse{
		Status:  "executed",
		Output:  result.State,
		RunID:   result.RunID,
		Version: result.Version,
		Visited: result.Visited,
	})
}

func (h *APIHandlers) Ask(c fiber.Ctx) error {
	var req AskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	answer, err := h.assistant.Ask(c.Context(), req.UserInput, req.LeadData)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyInput) {
			return badRequest(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"result": answer})
}

func (h *APIHandlers) Extract(c fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "file is required"})
	}

	mediaType := header.Header.Get(fiber.HeaderContentType)

	if err := extraction.Validate(mediaType, int(header.Size)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	file, err := header.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, extraction.MaxFileSize+1))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	contact, err := h.extractor.Extract(c.Context(), mediaType, data)
	if err != nil {
		switch {
		case extraction.IsInputError(err):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, extraction.ErrInvalidExtraction):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
		}
	}

	return c.JSON(contact)
}

func (h *APIHandlers) SaveLead(c fiber.Ctx) error {
	var req SaveLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.leadService.SaveExtracted(c.Context(), &models.Lead{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Source: req.Source,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Lead saved successfully",
		"id":      saved.ID,
	})
}

func (h *APIHandlers) GetLeads(c fiber.Ctx) error {
	req, err := parseListLeadsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.leadService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// parseListLeadsRequest parses query parameters for listing leads.
func parseListLeadsRequest(c fiber.Ctx) (*services.ListLeadsRequest, error) {
	req := &services.ListLeadsRequest{
		Filter:    c.Query("filter"),
		SortField: c.Query("sortField"),
		SortOrder: c.Query("sortOrder"),
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, err
		}

		req.Page = page
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	return req, nil
}

func (h *APIHandlers) CreateLead(c fiber.Ctx) error {
	var req CreateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.leadService.Create(c.Context(), &models.Lead{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateLeadStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lead ID is required")
	}

	var req UpdateLeadStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.leadService.UpdateStatus(c.Context(), id, req.Status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteLead(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lead ID is required")
	}

	if err := h.leadService.Delete(c.Context(), id); err != nil {
		if services.IsNotFoundError(err) {
			return notFound(c, "Lead not found")
		}

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"msg": "Lead removed"})
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	router.Get("/workflow", h.GetWorkflow)
	router.Post("/workflow", h.DefineWorkflow)
	router.Post("/workflow/run", h.RunWorkflow)

	router.Post("/ask", h.Ask)
	router.Post("/extract", h.Extract)
	router.Post("/save_lead", h.SaveLead)

	l := router.Group("/api/leads")
	l.Get("/", h.GetLeads)
	l.Post("/", h.CreateLead)
	l.Patch("/:id", h.UpdateLeadStatus)
	l.Delete("/:id", h.DeleteLead)
}
