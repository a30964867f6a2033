package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/storage"
	"go.uber.org/zap"
)

var importExtensions = map[string]bool{".sqlite": true, ".db": true}

// DatabaseHandler exposes administrative storage operations.
type DatabaseHandler struct {
	backend repository.Backend
}

func NewDatabaseHandler(backend repository.Backend) *DatabaseHandler {
	return &DatabaseHandler{backend: backend}
}

// Export streams the relational database image as a download
func (h *DatabaseHandler) Export(c *gin.Context) {
	store, ok := h.backend.(repository.ImageStore)
	if !ok {
		apierrors.RespondWithServiceError(c, repository.ErrUnsupported)
		return
	}

	// buffered so a failed export can still answer with an error
	var buf bytes.Buffer
	size, err := store.Export(c.Request.Context(), &buf)
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("tasks-%s.sqlite", time.Now().UTC().Format("2006-01-02"))
	apierrors.Logger(c).Info("Database exported", zap.Int64("bytes", size))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.sqlite3", buf.Bytes())
}

// Import replaces the relational database with an uploaded image
// Form: file (.sqlite or .db)
func (h *DatabaseHandler) Import(c *gin.Context) {
	store, ok := h.backend.(repository.ImageStore)
	if !ok {
		apierrors.RespondWithServiceError(c, repository.ErrUnsupported)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, "A database file is required")
		return
	}
	if !importExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		apierrors.BadRequest(c, "Database file must have a .sqlite or .db extension")
		return
	}
	if header.Size > constants.MaxImportSize {
		apierrors.BadRequest(c, "Database file is too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		apierrors.BadRequest(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	if err := store.Import(c.Request.Context(), file); err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	apierrors.Logger(c).Info("Database imported", zap.String("filename", header.Filename), zap.Int64("bytes", header.Size))
	c.JSON(http.StatusOK, gin.H{"message": "Database imported successfully"})
}

// Reset drops all data and re-seeds the storage
func (h *DatabaseHandler) Reset(c *gin.Context) {
	resetter, ok := h.backend.(repository.Resetter)
	if !ok {
		apierrors.RespondWithServiceError(c, repository.ErrUnsupported)
		return
	}

	if err := resetter.Reset(c.Request.Context()); err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	apierrors.Logger(c).Warn("Database reset")
	c.JSON(http.StatusOK, gin.H{"message": "Database reset successfully"})
}

// Reconcile compares the fallback pair and optionally mirrors one side onto the other
// Query: apply, from (primary|secondary)
func (h *DatabaseHandler) Reconcile(c *gin.Context) {
	fallback, ok := h.backend.(*storage.Fallback)
	if !ok {
		apierrors.RespondWithServiceError(c, repository.ErrUnsupported)
		return
	}

	apply := false
	if raw := c.Query("apply"); raw != "" {
		var err error
		if apply, err = strconv.ParseBool(raw); err != nil {
			apierrors.BadRequest(c, "Invalid apply flag")
			return
		}
	}

	from := storage.Direction(c.DefaultQuery("from", string(storage.FromPrimary)))
	if from != storage.FromPrimary && from != storage.FromSecondary {
		apierrors.BadRequest(c, "from must be primary or secondary")
		return
	}

	report, err := fallback.Reconcile(c.Request.Context(), from, apply)
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	apierrors.Logger(c).Info("Reconciliation finished",
		zap.String("source", report.Source),
		zap.Bool("in_sync", report.InSync()),
		zap.Bool("applied", report.Applied),
	)
	c.JSON(http.StatusOK, report)
}
