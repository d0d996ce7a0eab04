package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/deepmine/internal/auth"
	"github.com/annel0/deepmine/internal/logging"
	"github.com/annel0/deepmine/internal/middleware"
	"github.com/annel0/deepmine/internal/mining"
	"github.com/annel0/deepmine/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// MineService: операции шахты, доступные через REST
type MineService interface {
	EnterMine(ctx context.Context, playerID uint64) (mining.SessionInfo, error)
	HandleHit(ctx context.Context, playerID uint64) mining.HitResult
	StartLoop(ctx context.Context, playerID uint64) (mining.HitResult, error)
	StopLoop(playerID uint64)
	ResetMine(ctx context.Context, playerID uint64) (mining.SessionInfo, error)
	Disconnect(playerID uint64)
	DetectCurrentBlock(ctx context.Context, playerID uint64) (mining.Preview, error)
	Session(playerID uint64, regionID int) (mining.SessionInfo, bool)
	ActiveSessions() int
}

// RestServer представляет REST API сервер
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	mines    MineService
	progress storage.ProgressRepo
	tokens   *auth.TokenManager
	stats    *ServerStats
	tracer   trace.Tracer
	log      *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        string               // адрес для запуска сервера, например ":8088"
	Mines       MineService          // обязательно
	Progress    storage.ProgressRepo // обязательно
	Tokens      *auth.TokenManager   // обязательно
	ServiceName string               // имя сервиса для otel и метрик

	// Registerer/Gatherer для HTTP-метрик; nil: глобальный регистр
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Mines == nil || config.Progress == nil || config.Tokens == nil {
		return nil, errors.New("api: mines, progress and tokens are required")
	}
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.ServiceName == "" {
		config.ServiceName = "deepmine"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("deepmine_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:   router,
		mines:    config.Mines,
		progress: config.Progress,
		tokens:   config.Tokens,
		stats:    NewServerStats(),
		tracer:   otel.Tracer("github.com/annel0/deepmine/internal/api"),
		log:      config.Logger,
	}
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")

	// Защищенные эндпоинты (требуют JWT)
	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/server", rs.handleServerInfo)
		protected.GET("/player", rs.handleGetPlayer)

		mine := protected.Group("/mine")
		{
			mine.POST("/enter", rs.handleEnter)
			mine.POST("/hit", rs.handleHit)
			mine.POST("/loop/start", rs.handleLoopStart)
			mine.POST("/loop/stop", rs.handleLoopStop)
			mine.POST("/reset", rs.handleReset)
			mine.GET("/block", rs.handleBlock)
			mine.GET("/session", rs.handleGetSession)
			mine.DELETE("/session", rs.handleLeave)
		}

		// Административные эндпоинты (только для админов)
		admin := protected.Group("/admin")
		admin.Use(rs.adminMiddleware())
		{
			admin.PUT("/players/:id/progress", rs.handleSaveProgress)
			admin.POST("/tokens", rs.handleIssueToken)
		}
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера (используется в тестах)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}

// handleHealth возвращает статус сервера без авторизации
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleServerInfo возвращает информацию о процессе
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	ok(c, "Информация о сервере", rs.stats.Collect(rs.mines.ActiveSessions()))
}

// Start запускает REST сервер и блокируется до его остановки
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("rest server: %w", err)
	}
	return nil
}

// Stop плавно останавливает сервер, дожидаясь активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
