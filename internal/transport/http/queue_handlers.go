package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/store"
)

// QueueHandlers provides HTTP handlers for the virtual entry queue.
type QueueHandlers struct {
	store store.QueueStore
	log   *zerolog.Logger
}

// NewQueueHandlers creates a new queue handlers instance.
func NewQueueHandlers(st store.QueueStore, logger *zerolog.Logger) *QueueHandlers {
	return &QueueHandlers{store: st, log: logger}
}

// QueueResponse reports the caller's queue status.
type QueueResponse struct {
	VenueID    string `json:"venueId"`
	InQueue    bool   `json:"inQueue"`
	QueueCount int    `json:"queueCount"`
}

// Join adds the caller to the venue queue.
// POST /api/queue/:venueId
func (h *QueueHandlers) Join(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	venueID := c.Param("venueId")

	joined, err := h.store.JoinQueue(c.Request.Context(), venueID, uid)
	if err != nil {
		h.storeError(c, err, "failed to join queue")
		return
	}
	if !joined {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already in queue"})
		return
	}
	h.respond(c, http.StatusCreated, venueID, true)
}

// Leave removes the caller from the venue queue.
// DELETE /api/queue/:venueId
func (h *QueueHandlers) Leave(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	venueID := c.Param("venueId")

	left, err := h.store.LeaveQueue(c.Request.Context(), venueID, uid)
	if err != nil {
		h.storeError(c, err, "failed to leave queue")
		return
	}
	if !left {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not in queue"})
		return
	}
	h.respond(c, http.StatusOK, venueID, false)
}

// Status reports whether the caller is queued and how long the queue is.
// GET /api/queue/:venueId
func (h *QueueHandlers) Status(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	venueID := c.Param("venueId")

	in, err := h.store.InQueue(c.Request.Context(), venueID, uid)
	if err != nil {
		h.storeError(c, err, "failed to check queue")
		return
	}
	h.respond(c, http.StatusOK, venueID, in)
}

func (h *QueueHandlers) respond(c *gin.Context, status int, venueID string, inQueue bool) {
	count, err := h.store.QueueCount(c.Request.Context(), venueID)
	if err != nil {
		h.storeError(c, err, "failed to count queue")
		return
	}
	c.JSON(status, QueueResponse{VenueID: venueID, InQueue: inQueue, QueueCount: count})
}

func (h *QueueHandlers) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "venue not found"})
		return
	}
	h.log.Error().Err(err).Str("venue_id", c.Param("venueId")).Msg(msg)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
