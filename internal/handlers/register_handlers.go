package handlers

import (
	"github.com/gin-gonic/gin"

	portssvc "github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/metrics"
	"github.com/qslv/transaction-engine/internal/middleware"
	"github.com/qslv/transaction-engine/internal/platform/config"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	// Health and metrics sit outside the trace-header requirement
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	setupAPIV1Routes(r, services)
}

// setupAPIV1Routes configures the /api/v1 group. Every business route requires
// the full set of trace headers.
func setupAPIV1Routes(r *gin.Engine, services *portssvc.ServiceContainer) {
	v1 := r.Group("/api/v1", middleware.TraceHeadersMiddleware())

	registerLedgerRoutes(v1, services.Ledger, services.ReserveFunds)
	registerReserveFundsRoutes(v1, services.ReserveFunds)
	registerTransferRoutes(v1, services.Transfer)
}
