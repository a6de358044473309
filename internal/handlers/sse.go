package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"ecom-dashboard/internal/config"
	"ecom-dashboard/internal/models"
	"ecom-dashboard/internal/services"
	"github.com/starfederation/datastar-go/datastar"
)

const maxRFMRows = 50

var rfmTableTemplate = template.Must(template.New("rfmTable").Parse(`
<div id="rfm-content">
<table class="modern-table">
<thead><tr><th>Customer</th><th>Recency (days)</th><th>Frequency</th><th>Monetary</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.CustomerID}}</td>
<td>{{.Recency}}</td>
<td>{{.Frequency}}</td>
<td><strong>${{printf "%.2f" .Monetary}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	defaults  config.AnalyticsConfig
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, cfg config.Config, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		defaults:  cfg.Analytics,
		logger:    logger,
	}
}

func (h *SSEHandlers) renderRFMTable(records []models.RFMRecord) (string, error) {
	if len(records) > maxRFMRows {
		records = records[:maxRFMRows]
	}

	var buf strings.Builder
	err := rfmTableTemplate.Execute(&buf, records)
	return buf.String(), err
}

// patchWarning swaps an analysis widget for its warning message. Every
// analysis failure lands here so one broken analysis never takes the
// page down.
func patchWarning(sse *datastar.ServerSentEventGenerator, elementID string, err error) {
	sse.PatchElements(fmt.Sprintf(
		`<div id=%q class="warning">⚠ %s</div>`,
		elementID, html.EscapeString(err.Error()),
	))
}

func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	overview := h.analytics.Overview()
	jsonData, err := json.Marshal(map[string]any{
		"overviewData": overview,
	})
	if err != nil {
		h.logger.Error("marshal overview data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(fmt.Sprintf(
		`<div id="overview-content">Total sales $%.0f across %d customers</div>`,
		overview.TotalSales, overview.UniqueCustomers,
	))

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleRFM(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	records, err := h.analytics.RFM()
	if err != nil {
		h.logger.Warn("rfm unavailable", "error", err)
		patchWarning(sse, "rfm-content", err)
		return
	}

	htmlTable, err := h.renderRFMTable(records)
	if err != nil {
		h.logger.Error("render rfm table", "error", err)
		return
	}
	sse.PatchElements(htmlTable)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleBasket(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	result, err := h.analytics.Basket(h.defaults.MinSupport, h.defaults.MinLift)
	if err != nil {
		h.logger.Warn("basket mining produced no full result", "error", err)
		if result == nil {
			patchWarning(sse, "basket-content", err)
			return
		}
		// Itemsets survived; only the rule stage came up empty.
		patchWarning(sse, "basket-rules-content", err)
	}

	jsonData, marshalErr := json.Marshal(map[string]any{
		"basketData": result,
	})
	if marshalErr != nil {
		h.logger.Error("marshal basket data", "error", marshalErr)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(fmt.Sprintf(
		`<div id="basket-content">%d itemsets, %d rules</div>`,
		len(result.Itemsets), len(result.Rules),
	))

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	points, err := h.analytics.Forecast(h.defaults.ForecastHorizon)
	if err != nil {
		h.logger.Warn("forecast unavailable", "error", err)
		patchWarning(sse, "forecast-content", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"forecastData": points,
	})
	if err != nil {
		h.logger.Error("marshal forecast data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="forecast-content">✅ Forecast data loaded</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleRefreshAll recomputes every analysis for the current table. Each
// analysis fails independently; whatever succeeds is pushed.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	signals := map[string]any{
		"overviewData": h.analytics.Overview(),
	}

	if records, err := h.analytics.RFM(); err != nil {
		patchWarning(sse, "rfm-content", err)
	} else if htmlTable, renderErr := h.renderRFMTable(records); renderErr == nil {
		sse.PatchElements(htmlTable)
	}

	if daily, err := h.analytics.DailySales(); err != nil {
		patchWarning(sse, "daily-content", err)
	} else {
		signals["dailyData"] = daily
	}

	if categories, err := h.analytics.CategorySales(); err != nil {
		patchWarning(sse, "category-content", err)
	} else {
		signals["categoryData"] = categories
	}

	if result, err := h.analytics.Basket(h.defaults.MinSupport, h.defaults.MinLift); err != nil && result == nil {
		patchWarning(sse, "basket-content", err)
	} else if result != nil {
		signals["basketData"] = result
	}

	if points, err := h.analytics.Forecast(h.defaults.ForecastHorizon); err != nil {
		patchWarning(sse, "forecast-content", err)
	} else {
		signals["forecastData"] = points
	}

	jsonData, err := json.Marshal(signals)
	if err != nil {
		h.logger.Error("marshal refresh signals", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
