package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted by the router.
type Handlers struct {
	Weights *handlers.WeightHandler
	Reports *handlers.ReportHandler
	Health  *handlers.HealthHandler
}

// New wires the Gin engine with required routes and middlewares. A non-empty
// apiToken protects every /api route with bearer authentication.
func New(h Handlers, apiToken string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	if apiToken != "" {
		api.Use(bearerAuth(apiToken))
	}

	farm := api.Group("/farms/:farmID")
	farm.GET("", h.Weights.GetFarm)
	farm.PUT("", h.Weights.SaveFarm)

	farm.POST("/weights", h.Weights.RecordWeight)
	farm.GET("/animals", h.Weights.ListAnimals)
	farm.POST("/animals", h.Weights.SaveAnimal)
	farm.GET("/animals/lookup", h.Weights.LookupAnimal)
	farm.GET("/animals/:animalID/weights", h.Weights.ListWeights)
	farm.GET("/animals/:animalID/trend", h.Reports.Trend)

	farm.GET("/monthly-matrix", h.Reports.MonthlyMatrix)
	farm.POST("/monthly-matrix/export", h.Reports.ExportMonthlyMatrix)

	farm.POST("/inventory/movements", h.Reports.RecordMovement)
	farm.GET("/inventory/ledger", h.Reports.Ledger)

	if logger != nil {
		logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	}

	return r
}

func bearerAuth(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handlers.ErrorResponse{
				Code:    handlers.CodeUnauthorized,
				Message: "missing or invalid bearer token",
			})
			return
		}
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
