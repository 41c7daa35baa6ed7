package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/core"
	"github.com/barscout/barscout-server/internal/geo"
	"github.com/barscout/barscout-server/internal/store"
)

// VenueHandlers provides HTTP handlers for the venue catalogue and user reports.
type VenueHandlers struct {
	store    store.VenueStore
	hub      *core.Hub
	onChange func(context.Context)
	log      *zerolog.Logger
}

// NewVenueHandlers creates a new venue handlers instance.
// onChange, if set, is called after a venue is created.
func NewVenueHandlers(st store.VenueStore, hub *core.Hub, onChange func(context.Context), logger *zerolog.Logger) *VenueHandlers {
	return &VenueHandlers{
		store:    st,
		hub:      hub,
		onChange: onChange,
		log:      logger,
	}
}

// CreateVenueRequest represents the create venue request body.
// Coordinates come from latitude/longitude when both are set, otherwise from an address
// written as "lat, lng". A venue may have no coordinates at all.
type CreateVenueRequest struct {
	Name      string   `json:"name" binding:"required,max=128"`
	Address   string   `json:"address" binding:"required,max=256"`
	Latitude  *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" binding:"omitempty,longitude"`
	ImageURL  string   `json:"imageUrl" binding:"omitempty,url,max=512"`
}

// RateRequest is a 1-5 star rating.
type RateRequest struct {
	Value int `json:"value" binding:"required,min=1,max=5"`
}

// CoverFeeRequest reports the entry price.
type CoverFeeRequest struct {
	Amount *float64 `json:"amount" binding:"required,gte=0"`
}

// TrafficRequest reports how crowded the venue is.
type TrafficRequest struct {
	Level string `json:"level" binding:"required,oneof=Empty Moderate Busy Packed"`
}

// VenueResponse represents a venue in API responses.
type VenueResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Coordinates *geo.Point `json:"coordinates"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	CreatedAt   string     `json:"createdAt"`
	// Occupancy is the live count from the presence registry.
	Occupancy int `json:"occupancy"`
}

// VenueDetailResponse adds aggregated user reports.
type VenueDetailResponse struct {
	VenueResponse
	AverageRating *float64 `json:"averageRating"`
	RatingCount   int      `json:"ratingCount"`
	CoverFee      *float64 `json:"coverFee"`
	Traffic       *string  `json:"traffic"`
	QueueCount    int      `json:"queueCount"`
}

func (h *VenueHandlers) venueResponse(v *store.Venue, snap core.Snapshot) VenueResponse {
	return VenueResponse{
		ID:          v.ID,
		Name:        v.Name,
		Address:     v.Address,
		Coordinates: v.Coordinates,
		ImageURL:    v.ImageURL,
		CreatedAt:   v.CreatedAt.Format(time.RFC3339),
		Occupancy:   snap.Venue(v.ID).Count,
	}
}

// ListVenues lists all venues with live occupancy.
// GET /api/venues
func (h *VenueHandlers) ListVenues(c *gin.Context) {
	venues, err := h.store.ListVenues(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list venues")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	snap := h.hub.Snapshot()
	response := make([]VenueResponse, 0, len(venues))
	for _, v := range venues {
		response = append(response, h.venueResponse(v, snap))
	}
	c.JSON(http.StatusOK, response)
}

// ListLocations returns the coordinates of every located venue, as used by tracking clients.
// GET /api/venues/locations
func (h *VenueHandlers) ListLocations(c *gin.Context) {
	locations, err := h.store.ListVenueLocations(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list venue locations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, locations)
}

// GetVenue returns one venue with its aggregated reports.
// GET /api/venues/:id
func (h *VenueHandlers) GetVenue(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	v, err := h.store.GetVenue(ctx, id)
	if err != nil {
		h.storeError(c, err, "failed to get venue")
		return
	}
	resp, err := h.detailResponse(ctx, v, h.hub.Snapshot())
	if err != nil {
		h.storeError(c, err, "failed to get venue stats")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VenueHandlers) detailResponse(ctx context.Context, v *store.Venue, snap core.Snapshot) (VenueDetailResponse, error) {
	stats, err := h.store.GetVenueStats(ctx, v.ID)
	if err != nil {
		return VenueDetailResponse{}, err
	}

	resp := VenueDetailResponse{
		VenueResponse: h.venueResponse(v, snap),
		AverageRating: stats.AverageRating,
		RatingCount:   stats.RatingCount,
		QueueCount:    stats.QueueCount,
	}
	if stats.LatestCover != nil {
		resp.CoverFee = &stats.LatestCover.Amount
	}
	if stats.LatestTraffic != nil {
		level := string(stats.LatestTraffic.Level)
		resp.Traffic = &level
	}
	return resp, nil
}

// CreateVenue adds a venue to the catalogue.
// POST /api/venues
func (h *VenueHandlers) CreateVenue(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create venue request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var coords *geo.Point
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		p, err := geo.NewPoint(*req.Latitude, *req.Longitude)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		coords = &p
	case req.Latitude != nil || req.Longitude != nil:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "latitude and longitude must be given together"})
		return
	default:
		if p, ok := geo.ParsePoint(req.Address); ok {
			coords = &p
		}
	}

	v := &store.Venue{
		Name:        req.Name,
		Address:     req.Address,
		Coordinates: coords,
		ImageURL:    req.ImageURL,
		CreatedBy:   &uid,
	}
	if err := h.store.CreateVenue(c.Request.Context(), v); err != nil {
		h.storeError(c, err, "failed to create venue")
		return
	}

	h.log.Info().Str("venue_id", v.ID).Str("name", v.Name).Bool("located", v.Coordinates != nil).Msg("venue created")
	if h.onChange != nil {
		h.onChange(c.Request.Context())
	}
	c.JSON(http.StatusCreated, h.venueResponse(v, h.hub.Snapshot()))
}

// Rate records the user's rating, replacing any earlier one.
// POST /api/venues/:id/rate
func (h *VenueHandlers) Rate(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "rating must be between 1 and 5"})
		return
	}

	if err := h.store.SetRating(c.Request.Context(), c.Param("id"), uid, req.Value); err != nil {
		h.storeError(c, err, "failed to rate venue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": req.Value})
}

// ReportCoverFee records a cover fee.
// POST /api/venues/:id/cover
func (h *VenueHandlers) ReportCoverFee(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	var req CoverFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount must be zero or more"})
		return
	}

	fee, err := h.store.AddCoverFee(c.Request.Context(), c.Param("id"), uid, *req.Amount)
	if err != nil {
		h.storeError(c, err, "failed to add cover fee")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"amount": fee.Amount, "createdAt": fee.CreatedAt.Format(time.RFC3339)})
}

// ReportTraffic records a crowd level.
// POST /api/venues/:id/traffic
func (h *VenueHandlers) ReportTraffic(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	var req TrafficRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "level must be one of Empty, Moderate, Busy, Packed"})
		return
	}

	report, err := h.store.AddTrafficReport(c.Request.Context(), c.Param("id"), uid, store.TrafficLevel(req.Level))
	if err != nil {
		h.storeError(c, err, "failed to add traffic report")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"level": report.Level, "createdAt": report.CreatedAt.Format(time.RFC3339)})
}

func (h *VenueHandlers) storeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "venue not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "venue already exists"})
	default:
		h.log.Error().Err(err).Str("venue_id", c.Param("id")).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
