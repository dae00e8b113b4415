package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/middleware"
)

// transferHandler handles transfers and the composite transfer-and-transact
// operation.
type transferHandler struct {
	transferService portssvc.TransferSvc
}

func registerTransferRoutes(rg *gin.RouterGroup, transferService portssvc.TransferSvc) {
	h := &transferHandler{transferService: transferService}
	rg.POST("/transfers", h.transferFunds)
	rg.POST("/transferandtransact", h.transferAndTransact)
}

func (h *transferHandler) transferFunds(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rc, _ := middleware.GetRequestContext(c)

	req := dto.TransferFundsRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind transfer request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.transferService.TransferFunds(c.Request.Context(), rc, req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *transferHandler) transferAndTransact(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rc, _ := middleware.GetRequestContext(c)

	req := dto.TransferAndTransactRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind transfer and transact request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.transferService.TransferAndTransact(c.Request.Context(), rc, req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
