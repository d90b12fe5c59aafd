// Package handlers implements the storage REST endpoints.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/christoofar/FogLAMP/internal/services"
)

type Handler struct {
	readingSrv *services.ReadingService
	purgeSrv   *services.Purge
}

func New(readingSrv *services.ReadingService, purgeSrv *services.Purge) *Handler {
	return &Handler{
		readingSrv: readingSrv,
		purgeSrv:   purgeSrv,
	}
}

// RegisterRoutes binds the storage surface under the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reading", h.AppendReadings)
	rg.GET("/reading", h.FetchReadings)
	rg.PUT("/reading/purge", h.PurgeReadings)
	rg.GET("/reading/purge", h.PurgeStatus)

	rg.PUT("/table/:table/query", h.QueryTable)
	rg.POST("/table/:table", h.InsertTable)
	rg.PUT("/table/:table", h.UpdateTable)
	rg.DELETE("/table/:table", h.DeleteTable)
}
