package router

import (
	"github.com/gin-gonic/gin"

	"ragrace/internal/handler"
	"ragrace/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	parseH *handler.ParseHandler,
	battleH *handler.BattleHandler,
	healthH *handler.HealthHandler,
	allowedOrigins []string,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	parse := r.Group("/api/v1/parse")
	parse.POST("/upload", parseH.Upload)
	parse.POST("/page-count", parseH.PageCount)
	parse.GET("/available-providers", parseH.AvailableProviders)
	parse.GET("/file/:file_id", parseH.File)
	parse.POST("/compare", parseH.Compare)
	parse.POST("/calculate-cost", parseH.CalculateCost)

	// Battle history
	parse.POST("/battle-feedback", battleH.Feedback)
	parse.GET("/battles", battleH.List)
	parse.GET("/battles/export", battleH.Export)
	parse.GET("/battles/:id", battleH.GetByID)

	return r
}
