// Package api provides the HTTP surface of the screening service.
//
// Handlers are thin: they bind and validate request payloads, call into the
// evaluation core, and map sentinel errors to HTTP status codes. All domain
// logic lives below this package.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openbenefits/medscreen/internal/cache"
	"github.com/openbenefits/medscreen/internal/core/db"
	"github.com/openbenefits/medscreen/internal/eligibility"
	"github.com/openbenefits/medscreen/internal/fpl"
)

// Service bundles the evaluation core and its injected caches behind the
// HTTP handlers.
type Service struct {
	store     *db.Store
	engine    *eligibility.Engine
	ruleCache *cache.RuleCache
	fplCache  *cache.FPLCache
	logger    *slog.Logger
}

// NewService wires the screening service. The caches are injected so their
// lifetime and stats are owned by the caller, not hidden inside the engine.
func NewService(store *db.Store, ruleTTL time.Duration, logger *slog.Logger) *Service {
	now := time.Now
	fplCache := cache.NewFPLCache(now)
	ruleCache := cache.NewRuleCache(now, ruleTTL)
	calc := fpl.NewCalculator(store, fplCache)
	engine := eligibility.NewEngine(store, calc, ruleCache, now)

	return &Service{
		store:     store,
		engine:    engine,
		ruleCache: ruleCache,
		fplCache:  fplCache,
		logger:    logger,
	}
}

// Router builds the gin engine with middleware and all routes registered.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(s.logger))

	r.GET("/healthz", s.Healthz)

	v1 := r.Group("/v1")
	{
		v1.POST("/screen", s.Screen)
		v1.POST("/questions/visible", s.VisibleQuestions)
		v1.POST("/wizard/next", s.WizardNext)
		v1.POST("/wizard/invalidate", s.WizardInvalidate)
		v1.GET("/cache/stats", s.CacheStats)
		v1.POST("/cache/invalidate", s.CacheInvalidate)
	}

	return r
}
