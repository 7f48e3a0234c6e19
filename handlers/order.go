package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tienda-service/internal/auth"
	"tienda-service/internal/cart"
	"tienda-service/internal/orders"
	"tienda-service/internal/stores/kafka"
	"tienda-service/pkg/ctxmanage"
	"tienda-service/pkg/logkey"
)

// Checkout commits the caller's active cart to an order. Unit prices are
// captured, stock is decremented, and the cart is cleared, all in one
// transaction.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cartResponse, err := h.c.GetActiveCartItems(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("failed to fetch cart items", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart items"})
		return
	}

	order, err := h.o.CreateOrder(c.Request.Context(), uuid.NewString(), claims.Subject, cartResponse.Items, true)
	if err != nil {
		h.reportCheckoutError(c, traceId, err)
		return
	}

	h.publishOrderPlaced(order)

	slog.Info("order created", slog.String(logkey.TraceID, traceId),
		slog.String("OrderID", order.ID), slog.Int64("Total", order.TotalPrice))
	c.JSON(http.StatusOK, order)
}

// BuyOne is the one-click path: a degenerate checkout of a single unit that
// goes through the same order-creating, stock-decrementing transaction but
// leaves the cart alone.
func (h *Handler) BuyOne(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	productID := c.Param("productID")
	if productID == "" {
		slog.Error("missing product id", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Product ID is required"})
		return
	}

	items := []cart.CartItem{{ProductID: productID, Quantity: 1}}
	order, err := h.o.CreateOrder(c.Request.Context(), uuid.NewString(), claims.Subject, items, false)
	if err != nil {
		h.reportCheckoutError(c, traceId, err)
		return
	}

	h.publishOrderPlaced(order)

	slog.Info("one-click order created", slog.String(logkey.TraceID, traceId),
		slog.String("OrderID", order.ID), slog.String("ProductID", productID))
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	list, err := h.o.ListOrdersByUser(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error fetching orders", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) ListAllOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	list, err := h.o.ListAllOrders(c.Request.Context())
	if err != nil {
		slog.Error("error fetching orders", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) reportCheckoutError(c *gin.Context, traceId string, err error) {
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		slog.Error("checkout on empty cart", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, orders.ErrInsufficientStock):
		slog.Error("insufficient stock", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrProductNotFound):
		slog.Error("product in cart no longer exists", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		slog.Error("error creating order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
	}
}

// publishOrderPlaced emits one event per order line without blocking the
// response.
func (h *Handler) publishOrderPlaced(order orders.Order) {
	if h.k == nil {
		return
	}
	go func() {
		for _, line := range order.Lines {
			jsonData, err := json.Marshal(kafka.OrderPlacedEvent{
				OrderId:   order.ID,
				ProductId: line.ProductID,
				Quantity:  line.Quantity,
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				slog.Error("failed to marshal OrderPlacedEvent", slog.String(logkey.ERROR, err.Error()))
				return
			}
			if err := h.k.ProduceMessage(kafka.TopicOrderPlaced, []byte(order.ID), jsonData); err != nil {
				slog.Error("failed to produce message", slog.String(logkey.ERROR, err.Error()))
				return
			}
			slog.Info("message produced", slog.String("Data", string(jsonData)))
		}
	}()
}
