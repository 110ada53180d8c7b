package server

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"payment-gateway/internal/models"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/health", s.healthHandler)
	e.POST("/payments", s.createPaymentHandler)
	e.GET("/payments-summary", s.paymentsSummaryHandler)
	e.POST("/purge-payments", s.purgePaymentsHandler)

	return e
}

func (s *Server) healthHandler(c echo.Context) error {
	if err := s.redisClient.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "down",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "up",
		"type":   "redis",
	})
}

// createPaymentHandler accepts a payment intent and hands it to the
// forwarder. The 200 means "queued", not "processed": delivery to a
// processor happens asynchronously.
func (s *Server) createPaymentHandler(c echo.Context) error {
	var req models.PaymentRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	if req.CorrelationID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "correlationId is required"})
	}

	if req.Amount < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Amount must not be negative"})
	}

	payment := models.Payment{
		CorrelationID: req.CorrelationID,
		Amount:        req.Amount,
	}

	if err := s.forwarder.Enqueue(payment); err != nil {
		log.Printf("Failed to accept payment %s: %v", req.CorrelationID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to accept payment"})
	}

	return c.JSON(http.StatusOK, models.PaymentResponse{
		Payment: req,
		Status:  "queued",
	})
}

func (s *Server) paymentsSummaryHandler(c echo.Context) error {
	from := int64(0)
	to := time.Now().UTC().UnixMilli()

	if v := c.QueryParam("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid from format, expected ISO-8601"})
		}
		from = parsed.UnixMilli()
	}

	if v := c.QueryParam("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid to format, expected ISO-8601"})
		}
		to = parsed.UnixMilli()
	}

	ctx := c.Request().Context()

	defaultSummary, err := s.ledger.Summary(ctx, models.ProcessorDefault, from, to)
	if err != nil {
		log.Printf("Failed to summarize default ledger: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get payment summary"})
	}

	fallbackSummary, err := s.ledger.Summary(ctx, models.ProcessorFallback, from, to)
	if err != nil {
		log.Printf("Failed to summarize fallback ledger: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get payment summary"})
	}

	return c.JSON(http.StatusOK, models.PaymentSummaryResponse{
		Default:  defaultSummary,
		Fallback: fallbackSummary,
	})
}

// purgePaymentsHandler clears the ledger and the queue. Test tooling
// only.
func (s *Server) purgePaymentsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.ledger.Purge(ctx); err != nil {
		log.Printf("Failed to purge ledger: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to purge payments"})
	}

	if err := s.queue.Purge(ctx); err != nil {
		log.Printf("Failed to purge queue: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to purge payments"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "All payments purged"})
}
