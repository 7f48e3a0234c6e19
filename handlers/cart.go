package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tienda-service/internal/auth"
	"tienda-service/internal/products"
	"tienda-service/pkg/ctxmanage"
	"tienda-service/pkg/logkey"
)

func (h *Handler) AddToCart(c *gin.Context) {
	// Get the traceId for logging
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var request struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if request.ProductID == "" || request.Quantity <= 0 {
		slog.Error("invalid product ID or quantity", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Product ID and quantity must be valid"})
		return
	}

	// Only existence is checked here; stock is authoritative at checkout
	if _, err := h.p.GetProductByID(c.Request.Context(), request.ProductID); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			slog.Error("product not found", slog.String(logkey.TraceID, traceId), slog.String("ProductID", request.ProductID))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		slog.Error("error fetching product details", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch product details"})
		return
	}

	err := h.c.AddToCartDB(c.Request.Context(), userId, request.ProductID, request.Quantity)
	if err != nil {
		slog.Error("error adding product to cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("ProductID", request.ProductID), slog.Int("Quantity", request.Quantity))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to add product to cart"})
		return
	}

	slog.Info("product added to cart", slog.String(logkey.TraceID, traceId),
		slog.String("ProductID", request.ProductID), slog.Int("Quantity", request.Quantity), slog.String("UserID", userId))

	c.JSON(http.StatusOK, gin.H{"message": "Product added to cart successfully"})
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	productID := c.Param("productID")
	if productID == "" {
		slog.Error("missing product id", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Product ID is required"})
		return
	}

	// Removing an entry that is not in the cart is a no-op
	if err := h.c.RemoveFromCartDB(c.Request.Context(), userId, productID); err != nil {
		slog.Error("error removing product from cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("ProductID", productID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove product from cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product removed from cart"})
}

func (h *Handler) GetActiveCartItems(c *gin.Context) {
	// Get the traceId for logging
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	cartResponse, err := h.c.GetActiveCartItems(c.Request.Context(), userId)
	if err != nil {
		slog.Error("error fetching active cart items", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()), slog.String("UserID", userId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch cart items"})
		return
	}

	slog.Info("fetched active cart items", slog.String(logkey.TraceID, traceId), slog.String("UserID", userId))

	c.JSON(http.StatusOK, gin.H{
		"items": cartResponse.Items,
	})
}
