package display

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

// RegisterRoutes mounts the read endpoints on rg and the refresh trigger on
// protected.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, protected *gin.RouterGroup) {
	rg.GET("/display.png", h.image)
	rg.GET("/frame", h.frame)
	protected.POST("/refresh", h.refresh)
}

func (h *Handler) image(c *gin.Context) {
	data, rec, err := h.Service.Current()
	if errors.Is(err, ErrNoFrame) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	etag := strconv.Quote(rec.ID)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *Handler) frame(c *gin.Context) {
	_, rec, err := h.Service.Current()
	if errors.Is(err, ErrNoFrame) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) refresh(c *gin.Context) {
	rec, err := h.Service.Refresh(c.Request.Context())
	switch {
	case errors.Is(err, ErrRefreshInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
