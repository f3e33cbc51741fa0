package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backtester/internal/analysis"
	"backtester/internal/exchange"
	"backtester/internal/model"
	"backtester/internal/simulator"
)

// AnalysisService is the behaviour the handlers need from analysis.Service.
type AnalysisService interface {
	Analyze(ctx context.Context, req analysis.Request) (*model.AnalysisResult, error)
	Symbols(ctx context.Context) ([]model.SymbolStats, error)
}

type handler struct {
	svc    AnalysisService
	logger *slog.Logger
}

func (h *handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Investment Analysis API",
		"version": "1.0.0",
	})
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.svc.Analyze(c.Request.Context(), req.toRequest())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAnalyzeResponse(result))
}

func (h *handler) symbols(c *gin.Context) {
	stats, err := h.svc.Symbols(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSymbolsResponse(stats))
}

func (h *handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	attrs := []any{"path", c.FullPath(), "status", status, "error", err, "request_id", c.GetString(requestIDKey)}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", attrs...)
	} else {
		h.logger.Warn("Request rejected", attrs...)
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal server error"
	}
	c.JSON(status, errorResponse{Detail: detail})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrInvalidDate),
		errors.Is(err, simulator.ErrInvalidParameter),
		errors.Is(err, simulator.ErrNoData),
		errors.Is(err, exchange.ErrUnsupportedInterval):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
