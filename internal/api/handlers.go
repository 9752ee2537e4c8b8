// Package api exposes the HTTP surface: account routes and the per-user
// document routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"docuchat/internal/auth"
	"docuchat/internal/ingest"
	"docuchat/internal/query"
	"docuchat/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobRunner schedules pipeline work for a user. *worker.Manager satisfies it.
type JobRunner interface {
	Ingest(ctx context.Context, username string, content []byte) (int, error)
	Query(ctx context.Context, username, question string) (string, error)
	CancelTenant(username string)
}

// Handler holds route dependencies.
type Handler struct {
	auth           *auth.Service
	jobs           JobRunner
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler builds the route handler. maxUploadMB <= 0 defaults to 10.
func NewHandler(authSvc *auth.Service, jobs JobRunner, maxUploadMB int64, logger *zap.Logger) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		auth:           authSvc,
		jobs:           jobs,
		maxUploadBytes: maxUploadMB << 20,
		logger:         logger,
	}
}

// RegisterRoutes attaches all routes to the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)

	authed := r.Group("/", h.auth.Middleware(), h.auth.CSRFMiddleware())
	authed.GET("/auth/protected", h.protected)
	authed.POST("/auth/logout", h.logout)
	authed.POST("/pdf/upload", h.upload)
	authed.POST("/pdf/query", h.query)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}
	_, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"created": true})
	case errors.Is(err, auth.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
	case errors.Is(err, auth.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email"})
	case errors.Is(err, auth.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "username_exists"})
	default:
		h.logger.Error("register", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	token, err := h.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}
		h.logger.Error("login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	maxAge := int(h.auth.TokenTTL().Seconds())
	c.SetCookie(h.auth.AuthCookieName(), token, maxAge, "/", "", false, true)
	if csrf, err := h.auth.NewCSRFToken(); err == nil {
		c.SetCookie(h.auth.CSRFCookieName(), csrf, maxAge, "/", "", false, false)
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) protected(c *gin.Context) {
	username, ok := auth.UsernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Hello, %s!", username)})
}

func (h *Handler) logout(c *gin.Context) {
	username, _ := auth.UsernameFromContext(c)
	if token, ok := auth.AuthTokenFromContext(c); ok {
		if err := h.auth.Invalidate(c.Request.Context(), token); err != nil {
			h.logger.Error("invalidate token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
	}
	if username != "" {
		h.jobs.CancelTenant(username)
	}
	c.SetCookie(h.auth.AuthCookieName(), "", -1, "/", "", false, true)
	c.SetCookie(h.auth.CSRFCookieName(), "", -1, "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"ack": true})
}

func (h *Handler) upload(c *gin.Context) {
	username, ok := auth.UsernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	file, header, err := c.Request.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	defer file.Close()
	if header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	if int64(len(content)) > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}

	count, err := h.jobs.Ingest(c.Request.Context(), username, content)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"chunksStored": count})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "busy"})
	case errors.Is(err, worker.ErrCanceled):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, ingest.ErrEmptyDocument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_document"})
	case errors.Is(err, ingest.ErrExtractionFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "extraction_failed"})
	case errors.Is(err, ingest.ErrIndexWrite):
		// partial writes are reported so the client knows some chunks landed
		c.JSON(http.StatusBadGateway, gin.H{"error": "index_write_failed", "chunksStored": count})
	default:
		h.logger.Error("upload", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

func (h *Handler) query(c *gin.Context) {
	username, ok := auth.UsernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_query"})
		return
	}

	answer, err := h.jobs.Query(c.Request.Context(), username, req.Query)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"answer": answer})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "busy"})
	case errors.Is(err, worker.ErrCanceled):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, query.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_query"})
	case errors.Is(err, query.ErrNoAnswer):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_answer"})
	case errors.Is(err, query.ErrRetrieval):
		c.JSON(http.StatusBadGateway, gin.H{"error": "retrieval_failed"})
	case errors.Is(err, query.ErrGeneration):
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed"})
	default:
		h.logger.Error("query", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
