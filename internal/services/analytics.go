package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"ecom-dashboard/internal/models"
)

// Analytics owns the current dataset snapshot and exposes one method per
// analysis. Each method reads the snapshot once and computes its result
// from scratch; nothing is cached between requests. Uploading swaps the
// snapshot wholesale under the lock.
type Analytics struct {
	mu      sync.RWMutex
	dataset *Dataset
	logger  *slog.Logger
}

func NewAnalytics(logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		dataset: NewDataset(nil),
		logger:  logger,
	}
}

func (a *Analytics) Dataset() *Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset
}

func (a *Analytics) SetDataset(ds *Dataset) {
	a.mu.Lock()
	a.dataset = ds
	a.mu.Unlock()
}

// LoadSample installs the embedded 9-row demo table.
func (a *Analytics) LoadSample() {
	ds := SampleDataset()
	a.SetDataset(ds)
	a.logger.Info("loaded sample dataset", "records", ds.Len())
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	start := time.Now()
	ds, err := LoadCSVFile(ctx, filename)
	if err != nil {
		return err
	}
	a.SetDataset(ds)
	a.logger.Info("dataset loaded",
		"source", filename,
		"records", ds.Len(),
		"skipped", ds.skipped,
		"duration", time.Since(start),
	)
	return nil
}

// ReplaceFromReader parses an uploaded table and swaps it in. A parse
// failure leaves the previous dataset untouched.
func (a *Analytics) ReplaceFromReader(ctx context.Context, r io.Reader) (*Dataset, error) {
	ds, err := ParseCSV(ctx, r)
	if err != nil {
		return nil, err
	}
	a.SetDataset(ds)
	a.logger.Info("dataset replaced by upload", "records", ds.Len(), "skipped", ds.skipped)
	return ds, nil
}

func (a *Analytics) Overview() models.Overview {
	return ComputeOverview(a.Dataset())
}

func (a *Analytics) DailySales() ([]models.DailyPoint, error) {
	ds := a.Dataset()
	if err := ds.RequireColumns("daily sales trend", ColDate); err != nil {
		return nil, err
	}
	return ComputeDailySales(ds), nil
}

func (a *Analytics) CategorySales() ([]models.CategorySales, error) {
	ds := a.Dataset()
	if err := ds.RequireColumns("sales by category", ColCategory); err != nil {
		return nil, err
	}
	return ComputeCategorySales(ds), nil
}

func (a *Analytics) RFM() ([]models.RFMRecord, error) {
	ds := a.Dataset()
	if err := ds.RequireColumns("RFM segmentation", ColDate); err != nil {
		return nil, err
	}
	return ComputeRFM(ds), nil
}

func (a *Analytics) Basket(minSupport, minLift float64) (*models.BasketResult, error) {
	ds := a.Dataset()
	if err := ds.RequireColumns("market basket analysis", ColOrderID, ColCategory); err != nil {
		return nil, err
	}
	return MineBaskets(ds, minSupport, minLift)
}

func (a *Analytics) Forecast(horizon int) ([]models.ForecastPoint, error) {
	ds := a.Dataset()
	if err := ds.RequireColumns("sales forecasting", ColDate); err != nil {
		return nil, err
	}
	return ForecastDailySales(ds, horizon)
}

// Stats describes the current snapshot for the admin surface.
func (a *Analytics) Stats() map[string]any {
	ds := a.Dataset()

	orders := make(map[string]struct{})
	customers := make(map[string]struct{})
	categories := make(map[string]struct{})
	var minDate, maxDate time.Time

	for _, tx := range ds.Rows() {
		if tx.OrderID != "" {
			orders[tx.OrderID] = struct{}{}
		}
		if tx.CustomerID != "" {
			customers[tx.CustomerID] = struct{}{}
		}
		if tx.Category != "" {
			categories[tx.Category] = struct{}{}
		}
		if tx.HasDate() {
			if minDate.IsZero() || tx.Date.Before(minDate) {
				minDate = tx.Date
			}
			if tx.Date.After(maxDate) {
				maxDate = tx.Date
			}
		}
	}

	stats := map[string]any{
		"source":     ds.source,
		"loaded_at":  ds.loadedAt,
		"records":    ds.Len(),
		"skipped":    ds.skipped,
		"orders":     len(orders),
		"customers":  len(customers),
		"categories": len(categories),
	}
	if !minDate.IsZero() {
		stats["first_date"] = minDate.Format(dateLayout)
		stats["last_date"] = maxDate.Format(dateLayout)
	}
	return stats
}
