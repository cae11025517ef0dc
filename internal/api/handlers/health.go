package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, health{Status: "ok"})
}

// GetReadiness handles GET /health/ready. The store is the only hard
// dependency; the upstream ATS is not probed.
func (s *Server) GetReadiness(c *gin.Context) {
	checks := make(map[string]string)
	status, httpStatus := "ok", http.StatusOK

	if err := s.store.Ping(c.Request.Context()); err != nil {
		checks["database"] = "error"
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	c.JSON(httpStatus, health{Status: status, Checks: checks})
}
