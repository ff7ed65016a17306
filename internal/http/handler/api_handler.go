package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/shortng/internal/app/model"
	"github.com/sifan077/shortng/internal/app/repository"
	"github.com/sifan077/shortng/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// APIHandler implements the read-only link API.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Get("/:filename", h.GetLink)
			links.Get("/:filename/history", h.History)
		}
	}
}

// SaveEventResponse is one journal entry as exposed by the API.
type SaveEventResponse struct {
	ID                string `json:"id"`
	Source            string `json:"source"`
	Overwrite         bool   `json:"overwrite"`
	PasswordProtected bool   `json:"password_protected"`
	UserAgent         string `json:"user_agent"`
	Timestamp         string `json:"timestamp"`
}

// GetLink handles GET /api/links/:filename
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "filename is required",
		})
	}

	info, err := h.linkService.GetLink(userContext(c), filename)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("filename", filename))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to read link",
		})
	}

	return c.JSON(info)
}

// History handles GET /api/links/:filename/history
func (h *APIHandler) History(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "filename is required",
		})
	}

	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed := c.QueryInt("offset"); parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.linkService.History(userContext(c), filename, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrJournalDisabled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to list save events", zap.Error(err), zap.String("filename", filename))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list save events",
		})
	}

	response := make([]SaveEventResponse, len(events))
	for i, event := range events {
		response[i] = toSaveEventResponse(event)
	}

	return c.JSON(fiber.Map{
		"events":   response,
		"limit":    limit,
		"offset":   offset,
		"count":    len(response),
	})
}

func toSaveEventResponse(event model.SaveEvent) SaveEventResponse {
	return SaveEventResponse{
		ID:                event.ID,
		Source:            event.Source,
		Overwrite:         event.Overwrite,
		PasswordProtected: event.PasswordProtected,
		UserAgent:         event.UserAgent,
		Timestamp:         event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
	}
}
