package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	themes func() int
}

// NewHealthHandler reports the number of loaded themes alongside the status.
func NewHealthHandler(themeCount func() int) *HealthHandler {
	return &HealthHandler{themes: themeCount}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	n := 0
	if h.themes != nil {
		n = h.themes()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "themes": n})
}
