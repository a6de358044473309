package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ecom-dashboard/internal/config"
	"ecom-dashboard/internal/errors"
	"ecom-dashboard/internal/observability"
	"ecom-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=60"

type APIHandlers struct {
	analytics *services.Analytics
	defaults  config.AnalyticsConfig
	maxUpload int64
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, cfg config.Config, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		defaults:  cfg.Analytics,
		maxUpload: cfg.Dataset.MaxUploadBytes,
		logger:    logger,
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	data := h.analytics.Overview()

	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleDailySales(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.DailySales()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleCategorySales(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.CategorySales()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleRFM(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.RFM()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleBasket(w http.ResponseWriter, r *http.Request) {
	minSupport, err := floatParam(r, "min_support", h.defaults.MinSupport, config.MinSupportFloor, config.MinSupportCeil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	minLift, err := floatParam(r, "min_lift", h.defaults.MinLift, config.MinLiftFloor, config.MinLiftCeil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := h.analytics.Basket(minSupport, minLift)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccess(w, data)
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.Forecast(h.defaults.ForecastHorizon)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccess(w, data)
}

// HandleUpload replaces the in-memory table wholesale with the request
// body. A parse failure reports the error and keeps the old table.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if _, err := h.analytics.ReplaceFromReader(r.Context(), r.Body); err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccess(w, h.analytics.Stats())
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

// floatParam reads a tunable query parameter, falling back to the
// configured default and rejecting values outside the advertised range.
func floatParam(r *http.Request, name string, def, min, max float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.BadRequest(fmt.Sprintf("parameter %q must be a number", name))
	}
	if value < min || value > max {
		return 0, errors.BadRequest(fmt.Sprintf("parameter %q must be in [%v, %v]", name, min, max))
	}
	return value, nil
}
