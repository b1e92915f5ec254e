package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sysdash/internal/middleware"
	"sysdash/internal/models"
	"sysdash/internal/render"
	"sysdash/internal/version"
)

// DashboardHandlers serves the dashboard page and its JSON API.
type DashboardHandlers struct {
	hub     *middleware.Hub
	sampler SamplerControl
	info    models.StaticInfo
}

// SamplerControl is the runtime-adjustable surface of the sampler loop.
type SamplerControl interface {
	SetIntervalSeconds(n int) int
	IntervalSeconds() int
	SetHistoryLength(n int) int
	HistoryLength() int
}

func NewDashboardHandlers(hub *middleware.Hub, sampler SamplerControl, info models.StaticInfo) *DashboardHandlers {
	return &DashboardHandlers{
		hub:     hub,
		sampler: sampler,
		info:    info,
	}
}

// Dashboard renders the single-page dashboard shell. All live content
// arrives over the WebSocket.
func (h *DashboardHandlers) Dashboard(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Title":   "System Monitor",
		"Info":    render.StaticInfoRows(h.info),
		"Version": version.String(),
	})
}

// APIFrame returns the most recently published dashboard frame.
func (h *DashboardHandlers) APIFrame(c *gin.Context) {
	payload := h.hub.LastFrame()
	if payload == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No frame published yet"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// APIStaticInfo returns the one-time host facts block.
func (h *DashboardHandlers) APIStaticInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"static_info": h.info,
		"rows":        render.StaticInfoRows(h.info),
	})
}

// ConfigUpdateInput carries a partial settings update. Absent fields keep
// their current values; negative values are rejected outright, while
// positive out-of-range values are clamped to the supported bounds.
type ConfigUpdateInput struct {
	UpdateIntervalSeconds *int `json:"update_interval_seconds" validate:"omitempty,gte=0"`
	HistoryLength         *int `json:"history_length" validate:"omitempty,gte=0"`
}

// APIConfigGET reports the effective runtime settings.
func (h *DashboardHandlers) APIConfigGET(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"update_interval_seconds": h.sampler.IntervalSeconds(),
		"history_length":          h.sampler.HistoryLength(),
	})
}

// APIConfigPUT adjusts tick interval and history length at runtime. Changes
// take effect on the next tick; the response reports the clamped values.
func (h *DashboardHandlers) APIConfigPUT(c *gin.Context) {
	var input ConfigUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format", "details": err.Error()})
		return
	}
	if err := middleware.ValidateStruct(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	if input.UpdateIntervalSeconds != nil {
		h.sampler.SetIntervalSeconds(*input.UpdateIntervalSeconds)
	}
	if input.HistoryLength != nil {
		h.sampler.SetHistoryLength(*input.HistoryLength)
	}

	c.JSON(http.StatusOK, gin.H{
		"update_interval_seconds": h.sampler.IntervalSeconds(),
		"history_length":          h.sampler.HistoryLength(),
	})
}
