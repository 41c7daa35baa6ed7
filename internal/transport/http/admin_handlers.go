package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminHandlers provides venue management for administrators.
type AdminHandlers struct {
	venues *VenueHandlers
	log    *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(venues *VenueHandlers, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{venues: venues, log: logger}
}

// ListVenues lists every venue with its aggregated reports.
// GET /api/admin/venues
func (h *AdminHandlers) ListVenues(c *gin.Context) {
	ctx := c.Request.Context()

	venues, err := h.venues.store.ListVenues(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list venues")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	snap := h.venues.hub.Snapshot()
	response := make([]VenueDetailResponse, 0, len(venues))
	for _, v := range venues {
		detail, err := h.venues.detailResponse(ctx, v, snap)
		if err != nil {
			h.log.Error().Err(err).Str("venue_id", v.ID).Msg("failed to get venue stats")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		response = append(response, detail)
	}
	c.JSON(http.StatusOK, response)
}

// CreateVenue adds a venue to the catalogue.
// POST /api/admin/venues
func (h *AdminHandlers) CreateVenue(c *gin.Context) {
	h.venues.CreateVenue(c)
}
