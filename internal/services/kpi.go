package services

import (
	"math"
	"slices"
	"strings"
	"time"

	"ecom-dashboard/internal/models"
)

// ComputeOverview returns the headline KPIs. Rows with a non-numeric
// amount contribute nothing to the total but still count toward the
// customer set.
func ComputeOverview(ds *Dataset) models.Overview {
	customers := make(map[string]struct{})
	total := 0.0

	for _, tx := range ds.Rows() {
		if !math.IsNaN(tx.Amount) {
			total += tx.Amount
		}
		if tx.CustomerID != "" {
			customers[tx.CustomerID] = struct{}{}
		}
	}

	return models.Overview{
		TotalSales:      total,
		UniqueCustomers: len(customers),
	}
}

// ComputeDailySales groups amounts by calendar day, ascending. Days with
// no transactions are absent, not zero-filled; rows without a date are
// excluded from the series.
func ComputeDailySales(ds *Dataset) []models.DailyPoint {
	byDay := make(map[time.Time]float64)

	for _, tx := range ds.Rows() {
		if !tx.HasDate() || math.IsNaN(tx.Amount) {
			continue
		}
		day := tx.Date.Truncate(24 * time.Hour)
		byDay[day] += tx.Amount
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })

	result := make([]models.DailyPoint, 0, len(days))
	for _, day := range days {
		result = append(result, models.DailyPoint{
			Date:  day.Format(dateLayout),
			Total: byDay[day],
		})
	}
	return result
}

// ComputeCategorySales sums amounts per category, highest first.
func ComputeCategorySales(ds *Dataset) []models.CategorySales {
	byCategory := make(map[string]float64)

	for _, tx := range ds.Rows() {
		if tx.Category == "" || math.IsNaN(tx.Amount) {
			continue
		}
		byCategory[tx.Category] += tx.Amount
	}

	result := make([]models.CategorySales, 0, len(byCategory))
	for category, total := range byCategory {
		result = append(result, models.CategorySales{Category: category, Total: total})
	}
	slices.SortFunc(result, func(a, b models.CategorySales) int {
		if a.Total != b.Total {
			if a.Total > b.Total {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Category, b.Category)
	})
	return result
}
