package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-client/internal/feed"
	"social-client/internal/logger"
	"social-client/internal/models"
)

// FeedHandler drives the feed controller on behalf of a local UI.
type FeedHandler struct {
	controller *feed.Controller
	log        *slog.Logger
}

func NewFeedHandler(controller *feed.Controller, log *slog.Logger) *FeedHandler {
	return &FeedHandler{controller: controller, log: logger.Component(log, "feed-handler")}
}

// Register wires the feed routes.
func (h *FeedHandler) Register(r gin.IRoutes) {
	r.GET("/feed", h.GetFeed)
	r.POST("/feed/next", h.LoadNext)
	r.POST("/feed/sentinel/:id", h.Intersect)
	r.POST("/feed/items/:id/like", h.ToggleLike)
	r.PUT("/feed/scroll", h.SetScroll)
	r.POST("/feed/unmount", h.Unmount)
	r.DELETE("/feed", h.Reset)
}

type feedView struct {
	feed.Snapshot
	Error string `json:"error,omitempty"`
}

func view(snap feed.Snapshot) feedView {
	v := feedView{Snapshot: snap}
	if snap.Err != nil {
		v.Error = "Failed to load feed"
	}
	return v
}

// GetFeed mounts the feed. A feed that already holds pages is returned as is
// with its saved scroll offset.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	if _, err := h.controller.Mount(c.Request.Context()); err != nil && !errors.Is(err, feed.ErrLoadInFlight) {
		h.log.Warn("feed mount failed", "error", err)
	}
	c.JSON(http.StatusOK, view(h.controller.State().Snapshot()))
}

// LoadNext loads the following page synchronously.
func (h *FeedHandler) LoadNext(c *gin.Context) {
	err := h.controller.LoadNext(c.Request.Context())
	switch {
	case errors.Is(err, feed.ErrLoadInFlight):
		errorJSON(c, http.StatusConflict, err.Error())
		return
	case err != nil && !errors.Is(err, feed.ErrNoMorePages):
		h.log.Warn("feed next page failed", "error", err)
	}
	c.JSON(http.StatusOK, view(h.controller.State().Snapshot()))
}

// Intersect reports that the item :id, the last one rendered, became
// visible. The next page loads in the background.
func (h *FeedHandler) Intersect(c *gin.Context) {
	id := models.ID(c.Param("id"))
	if !h.controller.IsLastItem(id) {
		errorJSON(c, http.StatusConflict, "sentinel must be the last loaded item")
		return
	}
	sentinel := h.controller.RegisterSentinel(id)
	started := sentinel.Intersect(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"started": started})
}

// ToggleLike flips the like on one item.
func (h *FeedHandler) ToggleLike(c *gin.Context) {
	item, err := h.controller.ToggleLike(c.Request.Context(), models.ID(c.Param("id")))
	switch {
	case errors.Is(err, feed.ErrItemNotFound):
		errorJSON(c, http.StatusNotFound, err.Error())
		return
	case err != nil:
		errorJSON(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, item)
}

type scrollRequest struct {
	Offset int `json:"offset"`
}

// SetScroll records the viewport offset.
func (h *FeedHandler) SetScroll(c *gin.Context) {
	var req scrollRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Offset < 0 {
		errorJSON(c, http.StatusBadRequest, "invalid payload")
		return
	}
	h.controller.State().SetScrollOffset(req.Offset)
	c.Status(http.StatusNoContent)
}

// Unmount detaches the view, keeping the loaded pages.
func (h *FeedHandler) Unmount(c *gin.Context) {
	var req scrollRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Offset < 0 {
		errorJSON(c, http.StatusBadRequest, "invalid payload")
		return
	}
	h.controller.Unmount(req.Offset)
	c.Status(http.StatusNoContent)
}

// Reset drops the whole feed.
func (h *FeedHandler) Reset(c *gin.Context) {
	h.controller.Unmount(0)
	h.controller.State().Reset()
	c.Status(http.StatusNoContent)
}
