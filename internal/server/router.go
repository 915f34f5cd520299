package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the ledger API. A nil gatherer serves the default prometheus registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.MaxMultipartMemory = MaxUploadBytes
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger), ErrorHandler(logger))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.CloseSession)

		sessions.PUT("/:id/document", h.ReplaceDocument)
		sessions.PATCH("/:id/document", h.RenameDocument)

		sessions.POST("/:id/extract", h.Extract())
		sessions.POST("/:id/parse", h.Parse())
		sessions.POST("/:id/score", h.Score())
		sessions.POST("/:id/approve", h.Approve())
		sessions.POST("/:id/seal", h.Seal)
		sessions.POST("/:id/share", h.Share())
		sessions.POST("/:id/correct", h.Correct())

		sessions.PATCH("/:id/record", h.EditRecord)
		sessions.DELETE("/:id/entry", h.DeleteEntry())

		v1.GET("/ledger", h.ListLedger)
		v1.GET("/ledger/export", h.ExportLedger)
	}

	return r
}
