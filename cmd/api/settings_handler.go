package api

import (
	"net/http"

	"attendance-bridge/pkg/config"

	"github.com/gin-gonic/gin"
)

// SettingsResponse is the effective configuration with secrets left out.
type SettingsResponse struct {
	CorpID                 string `json:"corp_id"`
	AgentID                int64  `json:"agent_id"`
	CallbackPath           string `json:"callback_path"`
	EchoMode               string `json:"echo_mode"`
	WeComBaseURL           string `json:"wecom_base_url"`
	HRBaseURL              string `json:"hr_base_url"`
	PollInterval           string `json:"poll_interval"`
	HTTPTimeout            string `json:"http_timeout"`
	Timezone               string `json:"timezone"`
	WatermarkRetentionDays int    `json:"watermark_retention_days"`
	DedupTTL               string `json:"dedup_ttl"`
	CommandWorkers         int    `json:"command_workers"`
	StateBackend           string `json:"state_backend"`
}

type SettingsHandler struct {
	settings SettingsResponse
}

func NewSettingsHandler(cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{settings: SettingsResponse{
		CorpID:                 cfg.CorpID,
		AgentID:                cfg.AgentID,
		CallbackPath:           cfg.CallbackPath,
		EchoMode:               cfg.EchoMode,
		WeComBaseURL:           cfg.WeComBaseURL,
		HRBaseURL:              cfg.HRBaseURL,
		PollInterval:           cfg.PollInterval.String(),
		HTTPTimeout:            cfg.HTTPTimeout.String(),
		Timezone:               cfg.Timezone,
		WatermarkRetentionDays: cfg.WatermarkRetentionDays,
		DedupTTL:               cfg.DedupTTL.String(),
		CommandWorkers:         cfg.CommandWorkers,
		StateBackend:           cfg.StateBackend,
	}}
}

// GetSettings returns the effective configuration
// GET /api/admin/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings)
}
