package datasync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"photo-sync/core/logger"
	"photo-sync/feature/datasync/models"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the reconciliation subsystem.
type Handler struct {
	service       *Service
	defaultTenant string
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, defaultTenant string) *Handler {
	return &Handler{service: service, defaultTenant: defaultTenant}
}

// RegisterRoutes registers the data-sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/data-sync")
	group.Post("/run", h.HandleRun)
	group.Get("/status", h.HandleStatus)
	group.Get("/conflicts", h.HandleConflicts)
	group.Post("/conflicts/:id/resolve", h.HandleResolve)
}

// tenant resolves the tenant for a request from the X-Tenant-ID header.
func (h *Handler) tenant(c *fiber.Ctx) string {
	if t := c.Get("X-Tenant-ID"); t != "" {
		return t
	}
	return h.defaultTenant
}

// HandleRun starts a reconciliation run and streams progress as SSE.
// @Summary Run reconciliation
// @Description Start a reconciliation run for the tenant and stream per-key action events, followed by a summary event, as server-sent events. Closing the connection cancels the run.
// @Tags data-sync
// @Accept json
// @Produce text/event-stream
// @Param X-Tenant-ID header string false "Tenant id (defaults to the configured tenant)"
// @Param options body RunOptions false "Run options"
// @Success 200 {string} string "SSE stream of action, summary and error events"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /data-sync/run [post]
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	tenantID := h.tenant(c)
	l := logger.WithRayID(h.service.logger, c)

	var opts RunOptions
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid run options: " + err.Error(),
			})
		}
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The stream writer runs after this handler returns, so everything it
	// needs is captured here. A failed flush means the client went away; the
	// run context is canceled and in-flight work is abandoned.
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := make(chan ProgressEvent, 64)
		go func() {
			defer close(events)

			emit := func(ev ProgressEvent) {
				select {
				case events <- ev:
				case <-ctx.Done():
				}
			}

			// Busy rejections already reach the stream as an error event,
			// emitted by the service or the runner's advisory lock path.
			_, err := h.service.Run(ctx, tenantID, opts, emit)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrTenantBusy) {
				l.Error("reconciliation run failed", zap.Error(err))
			}
		}()

		for ev := range events {
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				l.Error("failed to encode progress event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				break
			}
			if err := w.Flush(); err != nil {
				break
			}
		}

		cancel()
		for range events {
			// Drain so the run goroutine can finish emitting and exit.
		}
	}))

	return nil
}

// HandleStatus returns the tenant's run state and row counts.
// @Summary Reconciliation status
// @Description Whether a run is in progress, the last run's summary and per-status asset row counts for the tenant.
// @Tags data-sync
// @Produce json
// @Param X-Tenant-ID header string false "Tenant id (defaults to the configured tenant)"
// @Success 200 {object} StatusReport "Status"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /data-sync/status [get]
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	tenantID := h.tenant(c)
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.Status(c.Context(), tenantID)
	if err != nil {
		l.Error("status query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(report)
}

// HandleConflicts lists the tenant's unresolved conflicts.
// @Summary List conflicts
// @Description All unresolved conflicts recorded for the tenant, with both side snapshots.
// @Tags data-sync
// @Produce json
// @Param X-Tenant-ID header string false "Tenant id (defaults to the configured tenant)"
// @Success 200 {array} models.Conflict "Conflicts"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /data-sync/conflicts [get]
func (h *Handler) HandleConflicts(c *fiber.Ctx) error {
	tenantID := h.tenant(c)
	l := logger.WithRayID(h.service.logger, c)

	conflicts, err := h.service.Conflicts(c.Context(), tenantID)
	if err != nil {
		l.Error("conflict listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	return c.JSON(conflicts)
}

type resolveRequest struct {
	Strategy string `json:"strategy"`
	DryRun   bool   `json:"dryRun"`
}

// HandleResolve applies a resolution strategy to one conflict.
// @Summary Resolve a conflict
// @Description Resolve a recorded conflict by preferring the storage side (re-extract) or the database side (keep the stored manifest). Fails with 409 when storage changed since the conflict was recorded.
// @Tags data-sync
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string false "Tenant id (defaults to the configured tenant)"
// @Param id path string true "Conflict id"
// @Param resolution body resolveRequest true "Resolution strategy"
// @Success 200 {object} SyncAction "Applied action"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Conflict is stale"
// @Router /data-sync/conflicts/{id}/resolve [post]
func (h *Handler) HandleResolve(c *fiber.Ctx) error {
	tenantID := h.tenant(c)
	conflictID := c.Params("id")
	l := logger.WithRayID(h.service.logger, c)

	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid resolution request: " + err.Error(),
		})
	}
	if req.Strategy != ResolvePreferStorage && req.Strategy != ResolvePreferDatabase {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("strategy must be %q or %q", ResolvePreferStorage, ResolvePreferDatabase),
		})
	}

	action, err := h.service.Resolve(c.Context(), tenantID, conflictID, req.Strategy, req.DryRun)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "conflict not found",
		})
	case errors.Is(err, ErrStaleConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		l.Error("conflict resolution failed",
			zap.String("conflict_id", conflictID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(action)
}
