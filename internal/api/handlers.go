package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nicolovejoy/housing-data-v1/internal/ingest"
	"github.com/nicolovejoy/housing-data-v1/internal/models"
	"github.com/nicolovejoy/housing-data-v1/internal/query"
)

type Handler struct {
	engine  *query.Engine
	manager *ingest.Manager
	logger  *logrus.Logger
}

func NewHandler(engine *query.Engine, manager *ingest.Manager, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		engine:  engine,
		manager: manager,
		logger:  logger,
	}
}

// filterFromQuery reads the shared filter parameters off the request
func filterFromQuery(c *gin.Context) models.Filter {
	return models.Filter{
		StateCode:    c.Query("state_code"),
		Kind:         models.AreaKind(c.Query("kind")),
		NameContains: c.Query("name"),
	}
}

func (h *Handler) GetPivot(c *gin.Context) {
	params := query.PivotParams{Filter: filterFromQuery(c)}
	if raw := c.Query("group_by"); raw != "" {
		params.GroupBy = strings.Split(raw, ",")
	}

	result, err := h.engine.Pivot(params)
	if err != nil {
		var qerr *query.Error
		if errors.As(err, &qerr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": qerr.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to build pivot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build pivot"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetAreas(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		limit = 0
	}

	result, err := h.engine.Drilldown(query.DrilldownParams{
		Filter: filterFromQuery(c),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		var qerr *query.Error
		if errors.As(err, &qerr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": qerr.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to list areas")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list areas"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.engine.Stats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// TriggerReload queues a reload of the configured source file. The job runs
// on the manager's worker; its progress is polled via GetReloadJob.
func (h *Handler) TriggerReload(c *gin.Context) {
	job, err := h.manager.Enqueue("")
	if err != nil {
		if errors.Is(err, ingest.ErrQueueFull) {
			c.JSON(http.StatusConflict, gin.H{"error": "A reload is already queued"})
			return
		}
		if errors.Is(err, ingest.ErrQueueClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reload queue is shut down"})
			return
		}
		h.logger.WithError(err).Error("Failed to queue reload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue reload"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"state":  job.State,
	})
}

func (h *Handler) GetReloadJob(c *gin.Context) {
	job, ok := h.manager.Job(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) ListReloadJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Jobs())
}
