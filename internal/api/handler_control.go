package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inboxtriage/internal/label"
	"inboxtriage/internal/model"
	"inboxtriage/internal/repository"
	"inboxtriage/pkg/logger"
)

// ControlPlane 控制接口依赖的控制面操作，control.Plane 满足
type ControlPlane interface {
	State(ctx context.Context) (model.TriageState, error)
	GetStats(ctx context.Context) (model.Stats, error)
	SetEnabled(ctx context.Context, enabled bool) error
	BackendURL(ctx context.Context) string
	SetBackendURL(ctx context.Context, url string) error
	ResetStatsIfStale(ctx context.Context) (model.Stats, bool, error)
}

// CategoryCounter 审计日志统计，未启用数据库时为 nil
type CategoryCounter interface {
	CountByCategory(ctx context.Context, since time.Time) ([]repository.CategoryCount, error)
}

type ControlHandler struct {
	plane   ControlPlane
	counter CategoryCounter
	guard   *label.Guard
	logger  *zap.Logger
}

func NewControlHandler(plane ControlPlane, counter CategoryCounter, guard *label.Guard, log *zap.Logger) *ControlHandler {
	if guard == nil {
		guard = label.NewGuard()
	}
	return &ControlHandler{plane: plane, counter: counter, guard: guard, logger: log}
}

type categoryView struct {
	Category        model.Category `json:"category"`
	Title           string         `json:"title"`
	BackgroundColor model.Color    `json:"background_color"`
	ForegroundColor model.Color    `json:"foreground_color"`
}

// StateResponse GET /state
type StateResponse struct {
	Enabled    bool        `json:"enabled"`
	Stats      model.Stats `json:"stats"`
	BackendURL string      `json:"backend_url"`
}

// Categories handles GET /categories
func (h *ControlHandler) Categories(c *gin.Context) {
	var out []categoryView
	for _, cat := range model.Categories() {
		spec, _ := label.MapCategory(cat)
		out = append(out, categoryView{
			Category:        cat,
			Title:           spec.Title,
			BackgroundColor: spec.BackgroundColor,
			ForegroundColor: spec.ForegroundColor,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"version":      label.VocabularyVersion,
		"categories":   out,
		"guard_titles": h.guard.Titles(),
	})
}

// Stats handles GET /stats
func (h *ControlHandler) Stats(c *gin.Context) {
	stats, err := h.plane.GetStats(c.Request.Context())
	if err != nil {
		h.internalError(c, "failed to read stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StatsByCategory handles GET /stats/categories?since=720h
func (h *ControlHandler) StatsByCategory(c *gin.Context) {
	if h.counter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit log disabled"})
		return
	}

	window := 30 * 24 * time.Hour
	if s := c.Query("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		window = d
	}

	counts, err := h.counter.CountByCategory(c.Request.Context(), time.Now().Add(-window))
	if err != nil {
		h.internalError(c, "failed to count categories", err)
		return
	}
	if counts == nil {
		counts = []repository.CategoryCount{}
	}
	c.JSON(http.StatusOK, gin.H{"since": window.String(), "counts": counts})
}

// State handles GET /state
func (h *ControlHandler) State(c *gin.Context) {
	h.writeState(c)
}

// Enable handles POST /enable
func (h *ControlHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable handles POST /disable
func (h *ControlHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

// SetBackend handles PUT /backend，url 为空表示恢复默认地址
func (h *ControlHandler) SetBackend(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL != "" {
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) url"})
			return
		}
	}

	if err := h.plane.SetBackendURL(c.Request.Context(), req.URL); err != nil {
		h.internalError(c, "failed to set backend url", err)
		return
	}
	h.log(c).Info("Backend url changed", zap.String("url", req.URL))
	h.writeState(c)
}

// ResetCheck handles POST /stats/reset-check
func (h *ControlHandler) ResetCheck(c *gin.Context) {
	stats, reset, err := h.plane.ResetStatsIfStale(c.Request.Context())
	if err != nil {
		h.internalError(c, "failed to check stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": reset, "stats": stats})
}

func (h *ControlHandler) setEnabled(c *gin.Context, enabled bool) {
	if err := h.plane.SetEnabled(c.Request.Context(), enabled); err != nil {
		h.internalError(c, "failed to update enabled flag", err)
		return
	}
	h.log(c).Info("Enabled flag changed via API", zap.Bool("enabled", enabled))
	h.writeState(c)
}

func (h *ControlHandler) writeState(c *gin.Context) {
	ctx := c.Request.Context()
	state, err := h.plane.State(ctx)
	if err != nil {
		h.internalError(c, "failed to read state", err)
		return
	}
	c.JSON(http.StatusOK, StateResponse{
		Enabled:    state.Enabled,
		Stats:      state.Stats,
		BackendURL: h.plane.BackendURL(ctx),
	})
}

func (h *ControlHandler) log(c *gin.Context) *zap.Logger {
	log := logger.WithTrace(c.Request.Context(), h.logger)
	if op, ok := c.Get("operator"); ok {
		log = log.With(zap.Any("operator", op))
	}
	return log
}

func (h *ControlHandler) internalError(c *gin.Context, msg string, err error) {
	h.log(c).Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
