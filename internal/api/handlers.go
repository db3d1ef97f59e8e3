package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"selaski/internal/apperr"
	"selaski/internal/models"
	"selaski/internal/service/message"
	"selaski/internal/service/user"
	"selaski/internal/storage"
	"selaski/internal/validation"
)

// UserService is what the user routes need from the user domain.
type UserService interface {
	CreateUser(ctx context.Context, in user.CreateInput) (*models.User, error)
	ListMessages(ctx context.Context, userID int64, filter storage.MessageFilter) ([]*models.Message, error)
}

// MessageService is what the message routes need from the message domain.
type MessageService interface {
	CreateMessage(ctx context.Context, in message.CreateInput) (*models.Message, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler wires HTTP routes to the user and message services.
type Handler struct {
	users    UserService
	messages MessageService
	health   HealthCheck
}

// NewHandler constructs a Handler instance. health may be nil.
func NewHandler(users UserService, messages MessageService, health HealthCheck) *Handler {
	return &Handler{users: users, messages: messages, health: health}
}

// RegisterRoutes attaches the API routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.healthz)
	router.POST("/users", h.createUser)
	router.GET("/users/:id/messages", h.listUserMessages)
	router.POST("/messages", h.createMessage)
	router.NoRoute(h.notFound)
}

func (h *Handler) createUser(c *gin.Context) {
	var req user.CreateInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	created, err := h.users.CreateUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "User created successfully", created)
}

func (h *Handler) listUserMessages(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, validation.Field("id", "id must be a positive integer"))
		return
	}
	var query user.MessageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, validation.Field("query", "invalid query string"))
		return
	}
	filter, err := user.ParseMessageQuery(query)
	if err != nil {
		respondError(c, err)
		return
	}
	messages, err := h.users.ListMessages(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Messages retrieved successfully", messages)
}

func (h *Handler) createMessage(c *gin.Context) {
	var req message.CreateInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	created, err := h.messages.CreateMessage(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Message created successfully", created)
}

func (h *Handler) healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			respondError(c, apperr.Internal(fmt.Errorf("health check: %w", err)))
			return
		}
	}
	respond(c, http.StatusOK, "OK", gin.H{"status": "ok"})
}

func (h *Handler) notFound(c *gin.Context) {
	respondError(c, apperr.NotFound(fmt.Sprintf("Cannot %s %s", c.Request.Method, c.Request.URL.Path)))
}

// bindJSON decodes the body into v, turning decode failures into validation errors.
func bindJSON(c *gin.Context, v any) error {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return validation.Field(typeErr.Field, fmt.Sprintf("%s must be a %s", typeErr.Field, jsonTypeName(typeErr.Type.Kind().String())))
	}
	return validation.Field("body", "request body must be a valid JSON object")
}

func jsonTypeName(kind string) string {
	switch kind {
	case "string":
		return "string"
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return "number"
	default:
		return kind
	}
}
