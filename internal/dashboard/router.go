package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler serves the dashboard over HTTP.
type Handler struct {
	builder  *Builder
	settings Settings
}

func NewHandler(builder *Builder, settings Settings) *Handler {
	return &Handler{builder: builder, settings: settings}
}

// Health handles GET /api/health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status handles GET /api/status.
func (h *Handler) Status(c *gin.Context) {
	report, err := h.builder.Build(c.Request.Context(), h.settings)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// NewRouter configures the dashboard routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/status", h.Status)

	return r
}
