package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"checkout/internal/balance"
	"checkout/internal/observability"
	"checkout/internal/orders"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// OrderService defines the behavior needed by the HTTP adapter.
type OrderService interface {
	ListProducts(ctx context.Context) ([]balance.Product, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.Order, error)
	CompleteOrder(ctx context.Context, orderID string) (*orders.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*orders.Order, error)
}

// Config groups the router's dependencies. Metrics and Realtime are optional.
type Config struct {
	Service  OrderService
	Metrics  *observability.Metrics
	Realtime http.Handler
	Logf     func(format string, args ...any)
}

type handler struct {
	service  OrderService
	validate *validatorv10.Validate
	logf     func(format string, args ...any)
}

// NewRouter builds the gin engine serving the order API.
func NewRouter(cfg Config) *gin.Engine {
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	h := &handler{
		service:  cfg.Service,
		validate: validatorv10.New(),
		logf:     logf,
	}

	r := gin.New()
	r.Use(gin.Recovery(), metricsMiddleware(cfg.Metrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/products", h.listProducts)
	api.POST("/orders/create", h.createOrder)
	api.GET("/orders/:id", h.getOrder)
	api.POST("/orders/:id/complete", h.completeOrder)
	api.POST("/orders/:id/cancel", h.cancelOrder)

	if cfg.Realtime != nil {
		r.GET("/ws/orders", gin.WrapH(cfg.Realtime))
	}
	return r
}

func (h *handler) listProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Successfully retrieved %d products", len(products)),
		Data:    newProductResponses(products),
	})
}

func (h *handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.toDomain())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/orders/"+order.ID)
	c.JSON(http.StatusCreated, envelope{
		Success: true,
		Message: "Order created successfully",
		Data:    newOrderResponse(order),
	})
}

func (h *handler) getOrder(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: "Order retrieved successfully",
		Data:    newOrderResponse(order),
	})
}

func (h *handler) completeOrder(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	order, err := h.service.CompleteOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: "Order completed successfully",
		Data:    newOrderResponse(order),
	})
}

func (h *handler) cancelOrder(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	order, err := h.service.CancelOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: "Order cancelled successfully",
		Data:    newOrderResponse(order),
	})
}

// orderID accepts only UUID path ids, the format CreateOrder generates.
func (h *handler) orderID(c *gin.Context) (string, bool) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, envelope{
			Message: "Validation error",
			Error:   fmt.Sprintf("order id %q is not a valid UUID", raw),
		})
		return "", false
	}
	return id.String(), true
}

func (h *handler) fail(c *gin.Context, err error) {
	status, title := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	_ = c.Error(err)
	c.JSON(status, envelope{
		Message: title,
		Error:   detailFor(status, err),
	})
}
