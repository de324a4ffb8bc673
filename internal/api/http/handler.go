package http

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/toolsascode/lockstep/internal/api/http/dto"
	"github.com/toolsascode/lockstep/internal/auth"
	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/queue"
)

// Handler handles HTTP API requests
type Handler struct {
	engine   *migrate.Engine
	producer queue.Producer // nil means migrations run synchronously
	devMode  bool
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *migrate.Engine, producer queue.Producer, devMode bool) *Handler {
	return &Handler{
		engine:   engine,
		producer: producer,
		devMode:  devMode,
	}
}

// RegisterRoutes registers HTTP routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		// Handle OPTIONS for all routes
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		api.POST("/migrate", h.authenticate, h.migrate)
		api.GET("/version", h.authenticate, h.version)
		api.GET("/migrations", h.authenticate, h.listMigrations)
		api.POST("/unlock", h.authenticate, h.unlock)
		api.POST("/reset", h.authenticate, h.reset)
		api.GET("/health", h.Health)
		api.GET("/openapi.yaml", h.OpenAPISpec)
		api.GET("/openapi.json", h.OpenAPISpecJSON)
	}
}

// authenticate middleware validates API token
func (h *Handler) authenticate(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	token, err := auth.ExtractToken(authHeader)
	if err != nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()})
		c.Abort()
		return
	}

	if err := auth.ValidateToken(token); err != nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()})
		c.Abort()
		return
	}

	c.Next()
}

// migrate handles migration requests. With a queue producer configured the
// command is published as a job; otherwise it runs in-process.
func (h *Handler) migrate(c *gin.Context) {
	var req dto.MigrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	// Reject malformed commands before queueing so the caller gets an
	// immediate error instead of a dead job.
	if _, err := migrate.ParseCommand(req.Command); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	if h.producer != nil {
		job := &queue.Job{
			ID:          fmt.Sprintf("job_%d", time.Now().UnixNano()),
			Command:     req.Command,
			RequestedBy: req.RequestedBy,
		}
		if err := h.producer.PublishJob(c.Request.Context(), job); err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, dto.MigrateResponse{
			Queued: true,
			JobID:  job.ID,
		})
		return
	}

	if err := h.engine.MigrateTo(c.Request.Context(), req.Command); err != nil {
		c.JSON(statusForError(err), dto.ErrorResponse{Error: err.Error()})
		return
	}

	version, err := h.engine.GetVersion(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.MigrateResponse{
		Queued:  false,
		Version: version,
	})
}

// version reports the current control record version
func (h *Handler) version(c *gin.Context) {
	version, err := h.engine.GetVersion(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.VersionResponse{Version: version})
}

// listMigrations lists the registered migrations with their applied state
func (h *Handler) listMigrations(c *gin.Context) {
	version, err := h.engine.GetVersion(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), dto.ErrorResponse{Error: err.Error()})
		return
	}

	all := h.engine.Registry().All()
	items := make([]dto.MigrationInfo, 0, len(all))
	for _, m := range all {
		if m.Version == migrate.SentinelVersion {
			continue
		}
		items = append(items, dto.MigrationInfo{
			Version: m.Version,
			Name:    m.Name,
			Applied: m.Version <= version,
			Current: m.Version == version,
		})
	}

	c.JSON(http.StatusOK, dto.MigrationListResponse{
		Items:   items,
		Total:   len(items),
		Version: version,
	})
}

// unlock force-releases the migration lock
func (h *Handler) unlock(c *gin.Context) {
	if err := h.engine.Unlock(c.Request.Context()); err != nil {
		c.JSON(statusForError(err), dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unlocked": true})
}

// reset wipes the control record and the registry. Guarded behind dev mode
// since it is destructive.
func (h *Handler) reset(c *gin.Context) {
	if !h.devMode {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "reset is only available in dev mode"})
		return
	}

	if err := h.engine.Reset(c.Request.Context()); err != nil {
		c.JSON(statusForError(err), dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// Health handles health check requests
func (h *Handler) Health(c *gin.Context) {
	healthStatus := gin.H{
		"status": "healthy",
		"checks": gin.H{},
	}

	if err := h.engine.Ping(c.Request.Context()); err != nil {
		healthStatus["status"] = "unhealthy"
		healthStatus["checks"].(gin.H)["store"] = err.Error()
	} else {
		healthStatus["checks"].(gin.H)["store"] = "ok"
	}

	statusCode := http.StatusOK
	if healthStatus["status"] == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthStatus)
}

//go:embed openapi.yaml
var openAPISpecYAML []byte

// OpenAPISpec serves the OpenAPI specification in YAML format
func (h *Handler) OpenAPISpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/x-yaml", openAPISpecYAML)
}

// OpenAPISpecJSON serves the OpenAPI specification in JSON format
func (h *Handler) OpenAPISpecJSON(c *gin.Context) {
	var spec map[string]interface{}
	if err := yaml.Unmarshal(openAPISpecYAML, &spec); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to parse OpenAPI spec"})
		return
	}
	c.JSON(http.StatusOK, spec)
}

// statusForError maps engine errors to HTTP status codes
func statusForError(err error) int {
	var (
		validationErr    *migrate.ValidationError
		commandErr       *migrate.InvalidCommandError
		notFoundErr      *migrate.NotFoundError
		notConfiguredErr *migrate.NotConfiguredError
		unsupportedErr   *migrate.DirectionUnsupportedError
		stepExecutionErr *migrate.StepExecutionError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &commandErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &notConfiguredErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &unsupportedErr), errors.As(err, &stepExecutionErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
