package handlers

import (
	"github.com/gin-gonic/gin"

	"hireguard.io/atssync/internal/api/middleware"
)

// RegisterWebhooks mounts the ATS webhook receiver. It sits outside JWT and
// OpenAPI validation; the signature is its authentication.
func (s *Server) RegisterWebhooks(r gin.IRoutes) {
	r.POST("/webhooks/merge", s.ReceiveWebhook)
}

// RegisterHealth mounts the liveness and readiness probes.
func (s *Server) RegisterHealth(r gin.IRoutes) {
	r.GET("/health/live", s.GetLiveness)
	r.GET("/health/ready", s.GetReadiness)
}

// RegisterAPI mounts the dashboard operations on an already authenticated
// group, guarding each with its scope.
func (s *Server) RegisterAPI(api gin.IRoutes) {
	read := middleware.RequireScope(middleware.ScopeIntegrationsRead)
	write := middleware.RequireScope(middleware.ScopeIntegrationsWrite)
	auditRead := middleware.RequireScope(middleware.ScopeAuditRead)

	api.POST("/integrations/link-token", write, s.CreateLinkToken)
	api.POST("/integrations", write, s.LinkIntegration)
	api.GET("/integrations/:integration_id", read, s.GetIntegration)
	api.DELETE("/integrations/:integration_id", write, s.DisconnectIntegration)
	api.GET("/integrations/:integration_id/account", read, s.GetLinkedAccount)
	api.POST("/integrations/:integration_id/backfill", write, s.StartBackfill)

	api.GET("/organizations/:organization_id/compliance-profile", read, s.GetComplianceProfile)
	api.PUT("/organizations/:organization_id/compliance-profile", write, s.PutComplianceProfile)

	api.GET("/audit/events", auditRead, s.ListAuditEvents)
	api.GET("/audit/verify", auditRead, s.VerifyAuditChain)
}
