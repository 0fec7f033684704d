package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"churn-risk-alerts/internal/service"
	"churn-risk-alerts/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type configPayload struct {
	WebhookURL            string    `json:"webhook_url"`
	IsEnabled             bool      `json:"is_enabled"`
	HighRiskThreshold     float64   `json:"high_risk_threshold"`
	RiskIncreaseThreshold float64   `json:"risk_increase_threshold"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

func configFromModel(cfg storage.AlertConfiguration) configPayload {
	return configPayload{
		WebhookURL:            cfg.WebhookURL,
		IsEnabled:             cfg.IsEnabled,
		HighRiskThreshold:     cfg.HighRiskThreshold,
		RiskIncreaseThreshold: cfg.RiskIncreaseThreshold,
		UpdatedAt:             cfg.UpdatedAt,
	}
}

type alertPayload struct {
	ID           int64           `json:"id"`
	CustomerID   *int64          `json:"customer_id,omitempty"`
	Kind         string          `json:"alert_kind"`
	Message      json.RawMessage `json:"message,omitempty"`
	SentAt       time.Time       `json:"sent_at"`
	WasSent      bool            `json:"was_sent"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

func alertFromModel(record storage.AlertHistoryRecord) alertPayload {
	return alertPayload{
		ID:           record.ID,
		CustomerID:   record.CustomerID,
		Kind:         string(record.Kind),
		Message:      record.Message,
		SentAt:       record.SentAt,
		WasSent:      record.WasSent,
		ErrorMessage: record.ErrorMessage,
	}
}

func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, err := s.store.GetAlertConfig(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, configFromModel(cfg))
}

func (s *Server) handleSaveConfig(c *gin.Context) {
	var payload configPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if msg := validateConfig(payload); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	saved, err := s.store.SaveAlertConfig(c.Request.Context(), storage.AlertConfiguration{
		WebhookURL:            payload.WebhookURL,
		IsEnabled:             payload.IsEnabled,
		HighRiskThreshold:     payload.HighRiskThreshold,
		RiskIncreaseThreshold: payload.RiskIncreaseThreshold,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, configFromModel(saved))
}

func validateConfig(payload configPayload) string {
	if payload.HighRiskThreshold <= 0 || payload.HighRiskThreshold > 1 {
		return "high_risk_threshold must be in (0, 1]"
	}
	if payload.RiskIncreaseThreshold <= 0 {
		return "risk_increase_threshold must be greater than zero"
	}
	if payload.IsEnabled && payload.WebhookURL == "" {
		return "webhook_url is required when alerting is enabled"
	}
	if payload.WebhookURL != "" {
		parsed, err := url.Parse(payload.WebhookURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return "webhook_url must be a valid http(s) URL"
		}
	}
	return ""
}

func (s *Server) handleAlertHistory(c *gin.Context) {
	filter, msg := parseHistoryFilter(c)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	records, total, err := s.store.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}

	alerts := make([]alertPayload, 0, len(records))
	for _, record := range records {
		alerts = append(alerts, alertFromModel(record))
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":    alerts,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func parseHistoryFilter(c *gin.Context) (storage.AlertHistoryFilter, string) {
	filter := storage.AlertHistoryFilter{Page: 1, PageSize: defaultPageSize}

	if raw := c.Query("alert_kind"); raw != "" {
		kind := storage.AlertKind(raw)
		if !kind.Valid() {
			return filter, "unknown alert_kind " + strconv.Quote(raw)
		}
		filter.Kind = kind
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, "customer_id must be an integer"
		}
		filter.CustomerID = &id
	}
	for _, bound := range []struct {
		param  string
		target **time.Time
	}{
		{"date_from", &filter.DateFrom},
		{"date_to", &filter.DateTo},
	} {
		if raw := c.Query(bound.param); raw != "" {
			parsed, err := parseDate(raw)
			if err != nil {
				return filter, bound.param + " must be RFC3339 or YYYY-MM-DD"
			}
			*bound.target = &parsed
		}
	}
	if raw := c.Query("success_only"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, "success_only must be a boolean"
		}
		filter.SuccessOnly = value
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, "page must be a positive integer"
		}
		filter.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return filter, "page_size must be a positive integer"
		}
		if size > maxPageSize {
			size = maxPageSize
		}
		filter.PageSize = size
	}
	return filter, ""
}

func parseDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", raw)
}

func (s *Server) handleAlertStats(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = parsed
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	overview, err := s.aggregator.AlertOverview(c.Request.Context(), since)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleDashboard(c *gin.Context) {
	snapshot, err := s.aggregator.Build(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleTriggerRun(c *gin.Context) {
	summary, err := s.runner.RunOnce(c.Request.Context())
	switch {
	case errors.Is(err, service.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{
			"status":  "already_running",
			"message": "an evaluation run is already in progress",
		})
	case err != nil:
		s.logger.Error().Err(err).Msg("triggered run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "evaluation run completed",
			"summary": summary,
		})
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
