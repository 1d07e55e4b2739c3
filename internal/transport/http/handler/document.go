package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragbase/internal/app"
	"ragbase/internal/metrics"
	"ragbase/internal/platform/rabbitmq"
	"ragbase/internal/transport/http/response"
)

type DocumentHandler struct {
	docService    *app.DocumentService
	ingestService *app.IngestService
	publisher     *rabbitmq.JobPublisher
}

type IngestRequest struct {
	Directory string `json:"directory" binding:"required"`
}

func NewDocumentHandler(
	docService *app.DocumentService,
	ingestService *app.IngestService,
	publisher *rabbitmq.JobPublisher,
) *DocumentHandler {
	return &DocumentHandler{
		docService:    docService,
		ingestService: ingestService,
		publisher:     publisher,
	}
}

// Import validates the directory synchronously, then queues the actual
// ingestion as a job and returns 202 with the job id.
func (h *DocumentHandler) Import(c *gin.Context) {
	h.enqueue(c, rabbitmq.JobKindImport)
}

// Sync works like Import but diffs the directory against the store instead
// of importing everything.
func (h *DocumentHandler) Sync(c *gin.Context) {
	h.enqueue(c, rabbitmq.JobKindSync)
}

func (h *DocumentHandler) enqueue(c *gin.Context, kind string) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.ingestService.CheckDirectory(req.Directory); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	job := rabbitmq.IngestJob{
		JobID:      uuid.NewString(),
		Kind:       kind,
		Directory:  req.Directory,
		EnqueuedAt: time.Now(),
	}
	if err := h.publisher.Publish(c.Request.Context(), job); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "enqueue ingest job failed")
		return
	}
	metrics.IngestJobsEnqueued.Inc()
	response.Accepted(c, gin.H{
		"job_id":    job.JobID,
		"kind":      job.Kind,
		"directory": job.Directory,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	skip := parseIntQuery(c, "skip", 0)
	limit := parseIntQuery(c, "limit", 0)
	search := c.Query("search")

	docs, err := h.docService.ListDocuments(skip, limit, search)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) GetChunks(c *gin.Context) {
	documentID := c.Param("id")
	skip := parseIntQuery(c, "skip", 0)
	limit := parseIntQuery(c, "limit", 0)

	chunks, err := h.docService.GetChunks(documentID, skip, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get chunks failed")
		}
		return
	}
	response.OK(c, gin.H{"document_id": documentID, "chunks": chunks, "count": len(chunks)})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	documentID := c.Param("id")
	deleted, err := h.docService.DeleteDocument(documentID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"document_id": documentID, "deleted_chunks": deleted})
}

func (h *DocumentHandler) ClearAll(c *gin.Context) {
	deleted, err := h.docService.ClearAll()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "clear all failed")
		return
	}
	response.OK(c, gin.H{"deleted_chunks": deleted})
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.docService.Stats()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stats failed")
		return
	}
	response.OK(c, stats)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	s := c.Query(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
