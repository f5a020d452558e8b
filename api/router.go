package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/leadscout/api/handler"
	"github.com/use-agent/leadscout/api/middleware"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/webhook"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Generator handler.Generator
	Parser    handler.PromptParser
	Pool      *engine.SlotPool
	Session   *engine.Session
	Jobs      *handler.Jobs
	Notifier  *webhook.Notifier
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(deps Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Pool, deps.Session, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// One gate shared by both entry points: all slots use one browser profile.
	gate := handler.NewGate()

	protected.POST("/leads/stream", handler.StreamLeads(deps.Generator, deps.Parser, gate))
	protected.POST("/campaigns", handler.PostCampaign(deps.Generator, deps.Parser, gate, deps.Jobs, deps.Notifier))
	protected.GET("/campaigns/:id", handler.GetCampaign(deps.Jobs))

	return r
}
