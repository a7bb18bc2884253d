// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"velo/internal/http/handlers"
	"velo/internal/http/middleware"
	"velo/internal/logger"
	"velo/internal/metrics"
)

type RouterDeps struct {
	Pricing     handlers.PricingService
	Plans       handlers.PlanStore
	Rules       handlers.RuleStore
	Promotions  handlers.PromotionStore
	Invalidator handlers.Invalidator
	Metrics     *metrics.Metrics
	Log         logger.ILogger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log, deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	pricingHandler := handlers.NewPricingHandler(deps.Pricing)
	api.POST("/quotes", pricingHandler.Quote)
	api.POST("/charges", pricingHandler.Charge)

	admin := api.Group("/admin")
	adminHandler := handlers.NewAdminHandler(deps.Plans, deps.Rules, deps.Promotions, deps.Invalidator)
	// Stores are nil when the engine runs from a YAML file; only the
	// invalidation endpoint is served then.
	if deps.Plans != nil && deps.Rules != nil && deps.Promotions != nil {
		admin.GET("/plans", adminHandler.ListPlans)
		admin.POST("/plans", adminHandler.CreatePlan)
		admin.GET("/plans/:id", adminHandler.GetPlan)
		admin.PUT("/plans/:id", adminHandler.UpdatePlan)
		admin.POST("/plans/:id/deactivate", adminHandler.DeactivatePlan)
		admin.POST("/plans/:id/activate", adminHandler.ActivatePlan)

		admin.GET("/rules", adminHandler.ListRules)
		admin.POST("/rules", adminHandler.CreateRule)
		admin.GET("/rules/:id", adminHandler.GetRule)
		admin.PUT("/rules/:id", adminHandler.UpdateRule)

		admin.GET("/promotions", adminHandler.ListPromotions)
		admin.POST("/promotions", adminHandler.CreatePromotion)
		admin.GET("/promotions/:id", adminHandler.GetPromotion)
		admin.PUT("/promotions/:id", adminHandler.UpdatePromotion)
	}

	admin.POST("/snapshot/invalidate", adminHandler.InvalidateSnapshot)

	return r
}
