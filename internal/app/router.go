package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"hireguard.io/atssync/internal/api/handlers"
	"hireguard.io/atssync/internal/api/middleware"
	"hireguard.io/atssync/internal/config"
	"hireguard.io/atssync/internal/pkg/logger"
)

// apiBasePath prefixes every authenticated route; it matches the server
// URL of the embedded OpenAPI document.
const apiBasePath = "/api/v1"

// newRouter mounts health probes and the webhook receiver without JWT auth
// (the receiver authenticates by signature) and everything else under
// apiBasePath behind JWT auth and contract validation.
func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	if corsCfg, ok := buildCORSConfig(cfg.Security); ok {
		router.Use(cors.New(corsCfg))
	}

	server.RegisterHealth(router)
	server.RegisterWebhooks(router)

	api := router.Group(apiBasePath,
		middleware.JWTAuth(jwtCfg),
		middleware.MustOpenAPIValidator(apiBasePath),
	)
	server.RegisterAPI(api)

	level := gin.WrapH(logger.HTTPHandler())
	admin := api.Group("/admin", middleware.RequireScope(middleware.ScopeAdmin))
	admin.GET("/log-level", level)
	admin.PUT("/log-level", level)

	return router
}

// buildCORSConfig returns the dashboard CORS policy. No configured origins
// means no CORS middleware. A "*" entry allows any origin but then drops
// credentials.
func buildCORSConfig(cfg config.SecurityConfig) (cors.Config, bool) {
	origins := make([]string, 0, len(cfg.CORSAllowedOrigins))
	allowAll := false
	for _, origin := range cfg.CORSAllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
			continue
		case "*":
			allowAll = true
		default:
			origins = append(origins, origin)
		}
	}
	if !allowAll && len(origins) == 0 {
		return cors.Config{}, false
	}

	out := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if allowAll {
		out.AllowAllOrigins = true
		out.AllowCredentials = false
	} else {
		out.AllowOrigins = origins
	}
	return out, true
}
