package api

import (
	"net/http"

	"github.com/Jooldo/zarify-sub003/internal/store"

	"github.com/gin-gonic/gin"
)

// RouterDeps зависимости HTTP слоя
type RouterDeps struct {
	Tenants       store.TenantResolver
	MRP           *MRPController
	Manufacturing *ManufacturingController
	Metrics       http.Handler // nil = без /metrics
}

// NewRouter собирает gin engine со всеми маршрутами MRP
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Health check endpoint (должен быть до CORS для Railway)
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "MRP Engine",
			"version": "1.0.0",
		})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	r.Use(RequestLogger())
	r.Use(CORS())

	apiGroup := r.Group("/api/v1")
	apiGroup.Use(TenantMiddleware(deps.Tenants))

	mrpGroup := apiGroup.Group("/mrp")
	{
		mrpGroup.GET("/requirements", deps.MRP.GetRequirements)
		mrpGroup.GET("/requirements/export", deps.MRP.ExportRequirements)
		mrpGroup.POST("/cache/invalidate", deps.MRP.InvalidateCache)
	}

	manufacturingGroup := apiGroup.Group("/manufacturing")
	{
		manufacturingGroup.POST("/orders", deps.Manufacturing.CreateOrder)
		manufacturingGroup.POST("/orders/:id/rework", deps.Manufacturing.CreateReworkOrder)
		manufacturingGroup.POST("/orders/:id/steps", deps.Manufacturing.CreateStepInstance)
		manufacturingGroup.GET("/orders/:id/lineage", deps.Manufacturing.GetLineage)
	}

	return r
}
