package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/barscout/barscout-server/internal/core"
)

// PopularityHandlers exposes the live occupancy registry over HTTP.
type PopularityHandlers struct {
	hub *core.Hub
}

// NewPopularityHandlers creates a new popularity handlers instance.
func NewPopularityHandlers(hub *core.Hub) *PopularityHandlers {
	return &PopularityHandlers{hub: hub}
}

// Snapshot returns the same payload as the realtime popularity-snapshot event.
// GET /api/popularity?venueId=
func (h *PopularityHandlers) Snapshot(c *gin.Context) {
	snap := h.hub.Snapshot()
	if venueID := c.Query("venueId"); venueID != "" {
		snap = snap.Only(venueID)
	}
	c.JSON(http.StatusOK, snapshotToProto(snap))
}
