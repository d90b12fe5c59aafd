package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

// AppendReadings stores a batch of readings.
// (POST /storage/reading)
func (h *Handler) AppendReadings(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	appended, err := h.readingSrv.Append(c.Request.Context(), payload)
	if err != nil {
		respondError(c, "append readings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings_added": appended})
}

// FetchReadings returns a block of readings starting at the id cursor.
// (GET /storage/reading?id=N&count=M)
func (h *Handler) FetchReadings(c *gin.Context) {
	id, err := strconv.ParseUint(c.DefaultQuery("id", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return
	}
	count, err := strconv.ParseUint(c.DefaultQuery("count", "100"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count parameter"})
		return
	}

	result, err := h.readingSrv.Fetch(c.Request.Context(), id, count)
	if err != nil {
		respondError(c, "fetch readings", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PurgeReadings removes aged readings.
// (PUT /storage/reading/purge?age=N&sent=M&flags=purge|retain)
func (h *Handler) PurgeReadings(c *gin.Context) {
	age, err := strconv.ParseUint(c.Query("age"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid age parameter"})
		return
	}
	sent, err := strconv.ParseUint(c.DefaultQuery("sent", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sent parameter"})
		return
	}
	var flags uint32
	if c.DefaultQuery("flags", "purge") == "retain" {
		flags = 1
	}

	report, err := h.readingSrv.Purge(c.Request.Context(), age, flags, sent)
	if err != nil {
		respondError(c, "purge readings", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PurgeStatus reports the most recent scheduled purge cycle.
// (GET /storage/reading/purge)
func (h *Handler) PurgeStatus(c *gin.Context) {
	if h.purgeSrv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "purge service not running"})
		return
	}
	report := h.purgeSrv.LastReport()
	if report == nil {
		c.JSON(http.StatusOK, gin.H{"status": "no purge cycle has completed yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func respondError(c *gin.Context, operation string, err error) {
	zap.S().Named("storage_api").Errorw("request failed", "operation", operation, "error", err)
	status := http.StatusInternalServerError
	if srvErrors.IsTranslationError(err) {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
