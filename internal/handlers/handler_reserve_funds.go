package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/middleware"
)

// reserveFundsHandler handles reservations resolved through the overdraft
// cascade.
type reserveFundsHandler struct {
	reserveFundsService portssvc.ReserveFundsSvc
}

func registerReserveFundsRoutes(rg *gin.RouterGroup, reserveFundsService portssvc.ReserveFundsSvc) {
	h := &reserveFundsHandler{reserveFundsService: reserveFundsService}
	rg.POST("/reservefunds", h.reserveFunds)
}

func (h *reserveFundsHandler) reserveFunds(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	rc, _ := middleware.GetRequestContext(c)

	req := dto.ReserveFundsRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind reserve funds request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.reserveFundsService.ReserveFunds(c.Request.Context(), rc, req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
