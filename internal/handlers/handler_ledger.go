package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/middleware"
)

// ledgerHandler handles the reservation state machine and direct transactions.
type ledgerHandler struct {
	ledgerService       portssvc.LedgerSvc
	reserveFundsService portssvc.ReserveFundsSvc
}

func newLedgerHandler(ledgerService portssvc.LedgerSvc, reserveFundsService portssvc.ReserveFundsSvc) *ledgerHandler {
	return &ledgerHandler{
		ledgerService:       ledgerService,
		reserveFundsService: reserveFundsService,
	}
}

func registerLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvc, reserveFundsService portssvc.ReserveFundsSvc) {
	h := newLedgerHandler(ledgerService, reserveFundsService)
	rg.POST("/transactions", h.transact)
	rg.POST("/reservations", h.reserve)
	rg.POST("/reservations/commit", h.commit)
	rg.POST("/reservations/cancel", h.cancel)
}

// transact records a direct transaction. Overdraft protection, when requested,
// settles through the cascade and returns every row the settlement produced.
func (h *ledgerHandler) transact(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rc, _ := middleware.GetRequestContext(c)

	req := dto.TransactionRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind transaction request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.reserveFundsService.TransactWithOverdraft(c.Request.Context(), rc, req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ledgerHandler) reserve(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rc, _ := middleware.GetRequestContext(c)

	req := dto.ReservationRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind reservation request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.ledgerService.Reserve(c.Request.Context(), rc, req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ledgerHandler) commit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rc, _ := middleware.GetRequestContext(c)

	req := dto.CommitReservationRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind commit request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.ledgerService.Commit(c.Request.Context(), rc, req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ledgerHandler) cancel(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rc, _ := middleware.GetRequestContext(c)

	req := dto.CancelReservationRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind cancel request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.ledgerService.Cancel(c.Request.Context(), rc, req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
