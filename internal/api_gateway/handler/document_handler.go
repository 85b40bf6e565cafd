package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/api_gateway/middleware"
	"github.com/lma-docpulse/internal/api_gateway/service"
	"github.com/lma-docpulse/internal/intake"
)

const uploadFormField = "file"

// DocumentHandler handles HTTP requests for document intake
type DocumentHandler struct {
	documentService service.DocumentService
	maxUploadBytes  int64
	logger          *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(logger *slog.Logger, documentService service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		maxUploadBytes:  maxUploadBytes,
		logger:          logger,
	}
}

// Upload accepts a multipart document and stores it. A failed transfer still
// returns the ERROR record so the client can see the reason.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			h.respondTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondTooLarge(c)
			return
		}
		h.logger.Error("Invalid upload", "error", err)
		RespondBadRequest(c, "Multipart field \""+uploadFormField+"\" is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "filename", fileHeader.Filename, "error", err)
		RespondInternalError(c)
		return
	}
	defer file.Close()

	rec, err := h.documentService.Upload(c.Request.Context(), intake.UploadRequest{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		if rec != nil {
			h.logger.Warn("Upload failed", "documentID", rec.ID, "error", err)
			RespondWithData(c, http.StatusBadGateway, mapDocumentToResponse(rec))
			return
		}
		respondServiceError(c, h.logger, "upload", err)
		return
	}

	RespondCreated(c, mapDocumentToResponse(rec))
}

// List returns documents in upload order, paginated
func (h *DocumentHandler) List(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	records, err := h.documentService.ListDocuments(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, "list", err)
		return
	}

	total := len(records)
	start := (params.Page - 1) * params.PerPage
	if start > total {
		start = total
	}
	end := start + params.PerPage
	if end > total {
		end = total
	}

	page := make([]DocumentResponse, 0, end-start)
	for _, rec := range records[start:end] {
		page = append(page, mapDocumentToResponse(rec))
	}
	RespondWithPaginatedData(c, http.StatusOK, page, params.Page, params.PerPage, total)
}

// GetByID returns a single document, 404 if unknown
func (h *DocumentHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	rec, err := h.documentService.GetDocument(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, "get", err)
		return
	}
	RespondOK(c, mapDocumentToResponse(rec))
}

// Analyze runs extraction for one document. With ?async=true the request is queued
// for the intake worker and 202 is returned.
func (h *DocumentHandler) Analyze(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		if err := h.documentService.RequestAnalysis(c.Request.Context(), id, middleware.GetCorrelationID(c)); err != nil {
			respondServiceError(c, h.logger, "request_analysis", err)
			return
		}
		RespondAccepted(c, AnalysisAcceptedResponse{DocumentID: id.String(), Status: "QUEUED"})
		return
	}

	rec, err := h.documentService.Analyze(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, "analyze", err)
		return
	}
	RespondOK(c, mapDocumentToResponse(rec))
}

// AnalyzeReady analyzes every READY document. Per-document failures are reported
// in the body; the batch itself succeeds.
func (h *DocumentHandler) AnalyzeReady(c *gin.Context) {
	results, err := h.documentService.AnalyzeReady(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, "analyze_ready", err)
		return
	}
	RespondOK(c, mapAnalysisResults(results))
}

// Confirm moves a document out of REVIEW
func (h *DocumentHandler) Confirm(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	rec, err := h.documentService.Confirm(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, "confirm", err)
		return
	}
	RespondOK(c, mapDocumentToResponse(rec))
}

func (h *DocumentHandler) respondTooLarge(c *gin.Context) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
		"Document exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
}

func (h *DocumentHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid document ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid document ID")
		return uuid.Nil, false
	}
	return id, true
}
