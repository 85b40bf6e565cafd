package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/lma-docpulse/internal/api_gateway/service"
	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/extraction"
)

// respondServiceError maps domain errors onto HTTP responses
func respondServiceError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var (
		notFound   document.ErrDocumentNotFound
		transition document.ErrInvalidTransition
		formatErr  *currency.FormatError
		extractErr *extraction.Error
	)

	switch {
	case errors.As(err, &notFound):
		RespondNotFound(c, "Document not found")
	case errors.As(err, &transition):
		logger.Warn("Rejected status transition", "op", op, "error", err)
		RespondConflict(c, err.Error())
	case errors.Is(err, document.ErrEmptyFilename):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, alert.ErrInvalidSeverity), errors.As(err, &formatErr):
		RespondUnprocessable(c, err.Error())
	case errors.As(err, &extractErr):
		logger.Warn("Extraction failed", "op", op, "documentID", extractErr.DocumentID, "error", extractErr.Cause)
		RespondBadGateway(c, err.Error())
	case errors.Is(err, service.ErrAsyncAnalysisDisabled):
		RespondServiceUnavailable(c, err.Error())
	default:
		logger.Error("Request failed", "op", op, "error", err)
		RespondInternalError(c)
	}
}
