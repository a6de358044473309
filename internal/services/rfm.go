package services

import (
	"math"
	"slices"
	"strings"
	"time"

	"ecom-dashboard/internal/models"
)

// ComputeRFM scores every customer by recency, frequency and monetary
// value. The snapshot date is fixed to one day after the latest observed
// transaction date, so recency is never negative. Frequency counts rows,
// monetary sums parseable amounts. Customers whose rows all lack a
// parseable date have no recency reference and are omitted.
func ComputeRFM(ds *Dataset) []models.RFMRecord {
	var snapshot time.Time
	for _, tx := range ds.Rows() {
		if tx.HasDate() && tx.Date.After(snapshot) {
			snapshot = tx.Date
		}
	}
	if snapshot.IsZero() {
		return []models.RFMRecord{}
	}
	snapshot = snapshot.AddDate(0, 0, 1)

	type accum struct {
		lastDate  time.Time
		frequency int
		monetary  float64
	}
	byCustomer := make(map[string]*accum)

	for _, tx := range ds.Rows() {
		if tx.CustomerID == "" {
			continue
		}
		acc := byCustomer[tx.CustomerID]
		if acc == nil {
			acc = &accum{}
			byCustomer[tx.CustomerID] = acc
		}
		acc.frequency++
		if !math.IsNaN(tx.Amount) {
			acc.monetary += tx.Amount
		}
		if tx.HasDate() && tx.Date.After(acc.lastDate) {
			acc.lastDate = tx.Date
		}
	}

	result := make([]models.RFMRecord, 0, len(byCustomer))
	for customer, acc := range byCustomer {
		if acc.lastDate.IsZero() {
			continue
		}
		result = append(result, models.RFMRecord{
			CustomerID: customer,
			Recency:    int(snapshot.Sub(acc.lastDate).Hours() / 24),
			Frequency:  acc.frequency,
			Monetary:   acc.monetary,
		})
	}

	slices.SortFunc(result, func(a, b models.RFMRecord) int {
		return strings.Compare(a.CustomerID, b.CustomerID)
	})
	return result
}
