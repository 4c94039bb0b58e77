// Package api REST-интерфейс для клиентов отрисовки: состояние сессии,
// позы, сущности, объемы и управление воспроизведением.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/scc-replay/internal/app"
	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	viewer  *app.Viewer
	log     *logging.Logger
	metrics *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr        string               // адрес для запуска сервера
	ServiceName string               // имя сервиса для otelgin и префикса метрик
	Viewer      *app.Viewer          // хост воспроизведения
	Registry    *prometheus.Registry // реестр метрик; nil означает новый реестр
	Logger      *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Addr == "" {
		config.Addr = ":8088"
	}
	if config.ServiceName == "" {
		config.ServiceName = "scc_api"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware(config.ServiceName, config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	rs := &RestServer{
		router:  router,
		viewer:  config.Viewer,
		log:     config.Logger,
		metrics: NewServerMetrics(),
	}
	rs.server = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")
	{
		api.GET("/session", rs.handleSession)
		api.GET("/poses", rs.handlePoses)
		api.GET("/entities", rs.handleEntities)
		api.GET("/volumes/:id", rs.handleVolume)
		api.GET("/track", rs.handleTracked)
		api.GET("/server", rs.handleServerInfo)

		api.POST("/load", rs.handleLoad)
		api.POST("/cursor", rs.handleCursor)
		api.POST("/scrub/start", rs.handleScrubStart)
		api.POST("/scrub/end", rs.handleScrubEnd)
		api.POST("/play", rs.handlePlay)
		api.POST("/speed", rs.handleSpeed)
		api.POST("/loop", rs.handleLoop)
		api.POST("/track", rs.handleTrack)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Router gin-роутер сервера
func (rs *RestServer) Router() *gin.Engine { return rs.router }

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

// handleHealth проверка живости
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleServerInfo возвращает метрики процесса
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, err := rs.metrics.GetCPUUsage()
	if err != nil {
		rs.log.Debug("CPU процесса недоступен: %v", err)
	}

	ok(c, "Информация о сервере", gin.H{
		"name":        "SCC Replay Viewer",
		"status":      "running",
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   memoryMB,
		"cpu_percent": cpuPercent,
		"ticks":       rs.viewer.Ticks(),
		"memory":      rs.metrics.GetDetailedMemoryStats(),
	})
}

// Start запускает REST сервер; блокирует до Stop
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает REST сервер, дожидаясь активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
