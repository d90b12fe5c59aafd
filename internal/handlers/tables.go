package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// QueryTable runs a retrieve descriptor against a table.
// (PUT /storage/table/{table}/query)
func (h *Handler) QueryTable(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	result, err := h.readingSrv.Query(c.Request.Context(), c.Param("table"), payload)
	if err != nil {
		respondError(c, "query table", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// InsertTable adds one row to a table.
// (POST /storage/table/{table})
func (h *Handler) InsertTable(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if err := h.readingSrv.Insert(c.Request.Context(), c.Param("table"), payload); err != nil {
		respondError(c, "insert table", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": "inserted"})
}

// UpdateTable applies an update payload to a table.
// (PUT /storage/table/{table})
func (h *Handler) UpdateTable(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	affected, err := h.readingSrv.Update(c.Request.Context(), c.Param("table"), payload)
	if err != nil {
		respondError(c, "update table", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows_affected": affected})
}

// DeleteTable removes the rows matched by the payload.
// (DELETE /storage/table/{table})
func (h *Handler) DeleteTable(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	deleted, err := h.readingSrv.Delete(c.Request.Context(), c.Param("table"), payload)
	if err != nil {
		respondError(c, "delete table", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows_deleted": deleted})
}
