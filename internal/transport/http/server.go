package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ragbase/internal/bootstrap"
	"ragbase/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	documentHandler := handler.NewDocumentHandler(app.DocumentService, app.IngestService, app.JobPublisher)
	qaHandler := handler.NewQAHandler(app.QAService)

	v1 := router.Group("/api/v1")

	docGroup := v1.Group("/documents")
	docGroup.POST("/import", documentHandler.Import)
	docGroup.POST("/sync", documentHandler.Sync)
	docGroup.GET("", documentHandler.List)
	docGroup.GET("/:id/chunks", documentHandler.GetChunks)
	docGroup.DELETE("/:id", documentHandler.Delete)
	docGroup.POST("/clear_all", documentHandler.ClearAll)

	qaGroup := v1.Group("/qa")
	qaGroup.POST("", qaHandler.Ask)
	qaGroup.POST("/batch", qaHandler.BatchAsk)
	qaGroup.GET("/search", qaHandler.Search)

	v1.GET("/system/stats", documentHandler.Stats)

	return router
}
