package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"productimport/internal/api/middleware"
	"productimport/internal/connectors"
	"productimport/internal/events"
	"productimport/internal/importer"
	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/selection"
)

const (
	maxUploadBytes      = 32 << 20
	previewValuesPerCol = 100
)

type ImportRunner interface {
	Run(ctx context.Context, shop string, req importer.Request) (*importer.Result, error)
	StartSession(ctx context.Context, shop string, req importer.Request) (*models.ImportSession, error)
	RunSession(ctx context.Context, sessionID, shop string, req importer.Request) (*importer.Result, error)
}

type ProgressReader interface {
	Progress(ctx context.Context, shop, sessionID string) (*importer.ProgressView, error)
}

type SessionLister interface {
	ListSessions(ctx context.Context, shop string, page, limit int) ([]models.ImportSession, int64, error)
}

type JobPublisher interface {
	PublishJob(ctx context.Context, job events.Job) error
}

type ImportHandler struct {
	runner   ImportRunner
	progress ProgressReader
	sessions SessionLister
	jobs     JobPublisher
	logger   *logger.Logger
}

// NewImportHandler wires the import endpoints. jobs may be nil, in which
// case async imports run in this process.
func NewImportHandler(runner ImportRunner, progress ProgressReader, sessions SessionLister, jobs JobPublisher, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		runner:   runner,
		progress: progress,
		sessions: sessions,
		jobs:     jobs,
		logger:   log,
	}
}

// Create runs an import to completion and returns its result.
func (h *ImportHandler) Create(c *gin.Context) {
	var req importer.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	result, err := h.runner.Run(c.Request.Context(), middleware.Shop(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateAsync records the session and hands the run to a worker.
func (h *ImportHandler) CreateAsync(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	var req importer.Request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	shop := middleware.Shop(c)
	session, err := h.runner.StartSession(c.Request.Context(), shop, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	job := events.Job{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Shop:      shop,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	if !h.enqueue(c.Request.Context(), job) {
		go h.runLocal(session.ID, shop, req)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":   true,
		"sessionId": session.ID,
		"status":    session.Status,
	})
}

func (h *ImportHandler) enqueue(ctx context.Context, job events.Job) bool {
	if h.jobs == nil {
		return false
	}
	if err := h.jobs.PublishJob(ctx, job); err != nil {
		h.logger.Error("Failed to enqueue import job for session %s, running in process: %v", job.SessionID, err)
		return false
	}
	return true
}

func (h *ImportHandler) runLocal(sessionID, shop string, req importer.Request) {
	if _, err := h.runner.RunSession(context.Background(), sessionID, shop, req); err != nil {
		h.logger.Error("Import session %s failed: %v", sessionID, err)
	}
}

func (h *ImportHandler) Progress(c *gin.Context) {
	view, err := h.progress.Progress(c.Request.Context(), middleware.Shop(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ImportHandler) List(c *gin.Context) {
	shop := middleware.Shop(c)
	if shop == "" {
		h.respondError(c, importer.ErrMissingShop)
		return
	}
	page, limit := pagination(c)

	sessions, total, err := h.sessions.ListSessions(c.Request.Context(), shop, page, limit)
	if err != nil {
		h.logger.Error("Failed to list import sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch import sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": sessions,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// Preview parses an uploaded CSV or XLSX file and lists the selectable
// values of every column.
func (h *ImportHandler) Preview(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file upload named \"file\" is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()

	data, err := connectors.ParseUpload(fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"headers": data.Headers,
		"rows":    data.Rows,
		"values":  selection.DistinctValues(data.Headers, data.Maps(), previewValuesPerCol),
		"total":   len(data.Rows),
	})
}

func (h *ImportHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, importer.ErrMissingShop):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, importer.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, importer.ErrShopNotConnected):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Shop is not connected; install the app to store an access token"})
	case errors.Is(err, importer.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Import session not found"})
	default:
		h.logger.Error("Import request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
