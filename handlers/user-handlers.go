package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"tienda-service/internal/auth"
	"tienda-service/internal/stores/kafka"
	"tienda-service/internal/users"
	"tienda-service/pkg/ctxmanage"
	"tienda-service/pkg/logkey"
)

func (h *Handler) Signup(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var newUser users.NewUser
	if err := c.ShouldBindJSON(&newUser); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	if err := h.validate.Struct(newUser); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, vErr := range vErrs {
				switch vErr.Tag() {
				case "required":
					slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value missing"})
					return
				case "min":
					slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is less than " + vErr.Param()})
					return
				case "email":
					slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " is not a valid email"})
					return
				}
			}
		}
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	user, err := h.u.InsertUser(c.Request.Context(), newUser)
	if err != nil {
		if errors.Is(err, users.ErrAlreadyExists) {
			slog.Error("duplicate signup", slog.String(logkey.TraceID, traceId), slog.String("LoginName", newUser.LoginName))
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Login name or email already registered"})
			return
		}
		slog.Error("error in inserting the user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "User creation failed"})
		return
	}

	// Publish the account-created event without blocking the response
	if h.k != nil {
		go func(user users.User) {
			jsonData, err := json.Marshal(kafka.AccountCreatedEvent{
				ID:        user.ID,
				Name:      user.Name,
				CreatedAt: user.CreatedAt,
				UpdatedAt: user.UpdatedAt,
			})
			if err != nil {
				slog.Error("failed to marshal AccountCreatedEvent", slog.String(logkey.ERROR, err.Error()))
				return
			}
			if err := h.k.ProduceMessage(kafka.TopicAccountCreated, []byte(user.ID), jsonData); err != nil {
				slog.Error("failed to produce message", slog.String(logkey.ERROR, err.Error()))
			}
		}(user)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User created successfully",
		"user_id": user.ID,
	})
}

func (h *Handler) UserLogin(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var request struct {
		LoginName string `json:"login_name"`
		Password  string `json:"password"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if request.LoginName == "" || request.Password == "" {
		slog.Error("missing login name or password", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Login name and password are required"})
		return
	}

	user, err := h.u.Authenticate(c.Request.Context(), request.LoginName, request.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			slog.Error("invalid credentials", slog.String(logkey.TraceID, traceId), slog.String("LoginName", request.LoginName))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		slog.Error("error in authenticating the user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	validity := 24 * time.Hour
	if hours := os.Getenv("TOKEN_VALIDITY_HOURS"); hours != "" {
		if n, err := strconv.Atoi(hours); err == nil && n > 0 {
			validity = time.Duration(n) * time.Hour
		}
	}

	token, err := h.a.GenerateToken(auth.NewClaims(user.ID, user.LoginName, user.Roles(), validity))
	if err != nil {
		slog.Error("error in generating the token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	slog.Info("user logged in", slog.String(logkey.TraceID, traceId), slog.String("UserID", user.ID))
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout abandons the caller's active cart. The session token itself is
// stateless and simply expires.
func (h *Handler) Logout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.c.ClearActiveCart(c.Request.Context(), claims.Subject); err != nil {
		slog.Error("error clearing cart on logout", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
