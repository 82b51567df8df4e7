package api

import (
	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamExport handles GET /v1/exports?resource=...&format=...
// Streams the export directly to the response
func (h *ExportHandler) StreamExport(c *gin.Context) {
	ctx := c.Request.Context()

	resource := c.Query("resource")
	if resource != "articles" && resource != "comments" {
		respondError(c, h.log, apperr.InvalidInput("resource must be one of: articles, comments"))
		return
	}

	format := c.DefaultQuery("format", service.FormatNDJSON)
	if format != service.FormatNDJSON && format != service.FormatJSON {
		respondError(c, h.log, apperr.InvalidInput("format must be one of: ndjson, json"))
		return
	}

	var err error
	switch resource {
	case "articles":
		err = h.services.Export.StreamArticles(ctx, c.Writer, format)
	case "comments":
		err = h.services.Export.StreamComments(ctx, c.Writer, format)
	}

	if err != nil {
		// Can't return error JSON after streaming has started
		h.log.Error().Err(err).Str("resource", resource).Msg("Export failed")
	}
}
