package handlers

import (
	"cobitis_web"
	_ "cobitis_web/docs"
	"cobitis_web/internal/chart"
	"cobitis_web/internal/logger"
	"cobitis_web/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	renderer *chart.Renderer
}

// NewHandler constructs a new HTTP handler with dependencies. A nil renderer
// draws labels with the built-in font.
func NewHandler(services *service.Service, log *logger.Logger, renderer *chart.Renderer) *Handler {
	if renderer == nil {
		renderer = chart.NewRenderer("")
	}
	return &Handler{services: services, log: log, renderer: renderer}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Persistent channels (HTTP upgrade) on the same port
	router.GET(cobitis_web.SensorChannelPath, h.sensorChannel)
	router.GET(cobitis_web.WebAppChannelPath, h.webAppChannel)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerSensorRoutes(api)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	sensors := api.Group("/sensors")
	{
		sensors.GET("", h.listSensors)
		// Body example: {"description":"tank A"}
		sensors.POST("", h.registerSensor)
		sensors.GET("/:index/latest", h.latestValues)
		// Query example: ?range_index=1&kind=tds&width=720&height=240
		sensors.GET("/:index/chart.png", h.chartPNG)
	}
}
