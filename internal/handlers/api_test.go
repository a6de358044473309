package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecom-dashboard/internal/config"
	"ecom-dashboard/internal/models"
	"ecom-dashboard/internal/services"
)

func testConfig() config.Config {
	return config.Config{
		Analytics: config.AnalyticsConfig{
			MinSupport:      0.05,
			MinLift:         1.0,
			ForecastHorizon: 7,
		},
		Dataset: config.DatasetConfig{
			MaxUploadBytes: 1 << 20,
		},
	}
}

func createTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(slog.Default())
	a.LoadSample()
	return a
}

// multiCategoryAnalytics holds orders spanning categories, so basket
// mining produces rules.
func multiCategoryAnalytics() *services.Analytics {
	date := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Transaction{
		{OrderID: "O1", Date: date, CustomerID: "C001", Amount: 100, Category: "Electronics"},
		{OrderID: "O1", Date: date, CustomerID: "C001", Amount: 50, Category: "Fashion"},
		{OrderID: "O2", Date: date, CustomerID: "C002", Amount: 80, Category: "Electronics"},
		{OrderID: "O2", Date: date, CustomerID: "C002", Amount: 40, Category: "Fashion"},
		{OrderID: "O3", Date: date, CustomerID: "C003", Amount: 60, Category: "Electronics"},
		{OrderID: "O3", Date: date, CustomerID: "C003", Amount: 30, Category: "Fashion"},
	}

	a := services.NewAnalytics(slog.Default())
	a.SetDataset(services.NewDataset(rows,
		services.ColOrderID, services.ColDate, services.ColCustomerID,
		services.ColAmount, services.ColCategory))
	return a
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return response
}

func errorCode(t *testing.T, response map[string]interface{}) string {
	t.Helper()
	errObj, ok := response["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got %v", response)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestNewAPIHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewAPIHandlers(analytics, testConfig(), slog.Default())

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}

	if handlers.analytics != analytics {
		t.Error("NewAPIHandlers() should set analytics field")
	}
}

func TestAPIHandlers_HandleOverview(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	w := httptest.NewRecorder()

	handlers.HandleOverview(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}

	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("expected cache-control 'public, max-age=60', got %q", cc)
	}

	response := decodeResponse(t, w)
	if success, ok := response["success"].(bool); !ok || !success {
		t.Error("expected success=true in response")
	}
	if _, ok := response["data"].(map[string]interface{}); !ok {
		t.Error("expected overview object in data field")
	}
}

func TestAPIHandlers_HandleDailySales(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/daily-sales", nil)
	w := httptest.NewRecorder()

	handlers.HandleDailySales(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeResponse(t, w)
	data, ok := response["data"].([]interface{})
	if !ok {
		t.Fatal("expected data array in response")
	}
	// The sample data covers nine distinct days.
	if len(data) != 9 {
		t.Errorf("expected 9 daily points, got %d", len(data))
	}
}

func TestAPIHandlers_HandleRFM(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/rfm", nil)
	w := httptest.NewRecorder()

	handlers.HandleRFM(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeResponse(t, w)
	data, ok := response["data"].([]interface{})
	if !ok {
		t.Fatal("expected data array in response")
	}
	// One record per sample customer.
	if len(data) != 4 {
		t.Errorf("expected 4 RFM records, got %d", len(data))
	}
}

func TestAPIHandlers_HandleBasket_EmptyRulesOnSample(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	// Every sample order is single-category: no rules can form.
	req := httptest.NewRequest(http.MethodGet, "/api/basket", nil)
	w := httptest.NewRecorder()

	handlers.HandleBasket(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}

	response := decodeResponse(t, w)
	if success, ok := response["success"].(bool); !ok || success {
		t.Error("expected success=false in response")
	}
	if code := errorCode(t, response); code != "EMPTY_RESULT" {
		t.Errorf("expected error code EMPTY_RESULT, got %q", code)
	}
}

func TestAPIHandlers_HandleBasket_Success(t *testing.T) {
	handlers := NewAPIHandlers(multiCategoryAnalytics(), testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/basket?min_support=0.1&min_lift=0.5", nil)
	w := httptest.NewRecorder()

	handlers.HandleBasket(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	response := decodeResponse(t, w)
	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatal("expected basket object in data field")
	}
	for _, field := range []string{"itemsets", "top_itemsets", "rules", "graph"} {
		if _, ok := data[field]; !ok {
			t.Errorf("expected field %q in basket result", field)
		}
	}
}

func TestAPIHandlers_HandleBasket_ParamValidation(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric support", "min_support=abc"},
		{"support above ceiling", "min_support=0.9"},
		{"support below floor", "min_support=0.001"},
		{"lift above ceiling", "min_lift=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/basket?"+tt.query, nil)
			w := httptest.NewRecorder()

			handlers.HandleBasket(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if code := errorCode(t, decodeResponse(t, w)); code != "BAD_REQUEST" {
				t.Errorf("expected error code BAD_REQUEST, got %q", code)
			}
		})
	}
}

func TestAPIHandlers_SchemaErrorWithoutDateColumn(t *testing.T) {
	// A table without the Date column still answers the overview but
	// rejects date-dependent analyses with a schema error.
	rows := []models.Transaction{
		{OrderID: "O1", CustomerID: "C001", Amount: 100, Category: "Electronics"},
		{OrderID: "O2", CustomerID: "C002", Amount: 200, Category: "Fashion"},
	}
	analytics := services.NewAnalytics(slog.Default())
	analytics.SetDataset(services.NewDataset(rows,
		services.ColOrderID, services.ColCustomerID, services.ColAmount, services.ColCategory))

	handlers := NewAPIHandlers(analytics, testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/rfm", nil)
	w := httptest.NewRecorder()
	handlers.HandleRFM(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("rfm: expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
	if code := errorCode(t, decodeResponse(t, w)); code != "SCHEMA_ERROR" {
		t.Errorf("rfm: expected error code SCHEMA_ERROR, got %q", code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	w = httptest.NewRecorder()
	handlers.HandleOverview(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("overview: expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAPIHandlers_HandleForecast(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)
	w := httptest.NewRecorder()

	handlers.HandleForecast(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	response := decodeResponse(t, w)
	data, ok := response["data"].([]interface{})
	if !ok {
		t.Fatal("expected data array in response")
	}
	if len(data) != 7 {
		t.Errorf("expected 7 forecast points, got %d", len(data))
	}
}

func TestAPIHandlers_HandleUpload(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewAPIHandlers(analytics, testConfig(), slog.Default())

	csv := strings.Join([]string{
		"OrderID,Date,CustomerID,Amount,Category",
		"10,2024-05-01,C101,123.45,Electronics",
		"11,2024-05-02,C102,67.89,Home",
	}, "\n")

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(csv))
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	response := decodeResponse(t, w)
	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatal("expected stats object in data field")
	}
	if records, _ := data["records"].(float64); records != 2 {
		t.Errorf("expected 2 records after upload, got %v", data["records"])
	}

	if analytics.Dataset().Len() != 2 {
		t.Errorf("upload should replace the table wholesale, got %d rows", analytics.Dataset().Len())
	}
}

func TestAPIHandlers_HandleUpload_ParseFailureKeepsOldTable(t *testing.T) {
	analytics := createTestAnalytics()
	before := analytics.Dataset().Len()
	handlers := NewAPIHandlers(analytics, testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("not,a\nvalid csv"))
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if code := errorCode(t, decodeResponse(t, w)); code != "PARSE_ERROR" {
		t.Errorf("expected error code PARSE_ERROR, got %q", code)
	}

	if analytics.Dataset().Len() != before {
		t.Errorf("failed upload must not touch the current table: %d rows, want %d",
			analytics.Dataset().Len(), before)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeResponse(t, w)
	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatal("expected health data in response")
	}
	if status, _ := data["status"].(string); status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", status)
	}
	if timestamp, _ := data["timestamp"].(string); timestamp == "" {
		t.Error("expected non-empty timestamp")
	} else if _, err := time.Parse(time.RFC3339, timestamp); err != nil {
		t.Errorf("invalid timestamp format: %v", err)
	}

	// Health endpoint should not be cached.
	if cc := w.Header().Get("Cache-Control"); cc != "" {
		t.Errorf("health endpoint should not set cache-control, got %q", cc)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()

	handlers.HandleStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeResponse(t, w)
	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatal("expected stats object in data field")
	}
	if records, _ := data["records"].(float64); records != 9 {
		t.Errorf("expected 9 sample records, got %v", data["records"])
	}
	if source, _ := data["source"].(string); source == "" {
		t.Error("expected non-empty source in stats")
	}
}

// Read endpoints must set consistent headers and envelope shape.
func TestAPIHandlers_HeaderConsistency(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testConfig(), slog.Default())

	apiEndpoints := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"overview", handlers.HandleOverview},
		{"daily-sales", handlers.HandleDailySales},
		{"category-sales", handlers.HandleCategorySales},
		{"rfm", handlers.HandleRFM},
	}

	for _, endpoint := range apiEndpoints {
		t.Run(endpoint.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			endpoint.handler(w, req)

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected content-type 'application/json', got %q", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=60" {
				t.Errorf("expected cache-control 'public, max-age=60', got %q", cc)
			}

			response := decodeResponse(t, w)
			if success, ok := response["success"].(bool); !ok || !success {
				t.Error("expected success=true in response")
			}
			if _, ok := response["data"]; !ok {
				t.Error("expected data field in response")
			}
		})
	}
}
