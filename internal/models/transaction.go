package models

import "time"

// Transaction is one row of the sales table. Date is the zero value when
// the source row had no parseable date; Amount is NaN when the source
// value was not numeric. Rows are never dropped for either condition.
type Transaction struct {
	OrderID    string
	Date       time.Time
	CustomerID string
	Amount     float64
	Category   string
}

// HasDate reports whether the row carries a usable calendar date.
func (t Transaction) HasDate() bool {
	return !t.Date.IsZero()
}

type Overview struct {
	TotalSales      float64 `json:"total_sales"`
	UniqueCustomers int     `json:"unique_customers"`
}

type DailyPoint struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

type CategorySales struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type RFMRecord struct {
	CustomerID string  `json:"customer_id"`
	Recency    int     `json:"recency"`
	Frequency  int     `json:"frequency"`
	Monetary   float64 `json:"monetary"`
}

type Itemset struct {
	Items   []string `json:"items"`
	Support float64  `json:"support"`
}

type AssociationRule struct {
	Antecedents []string `json:"antecedents"`
	Consequents []string `json:"consequents"`
	Support     float64  `json:"support"`
	Confidence  float64  `json:"confidence"`
	Lift        float64  `json:"lift"`
}

// GraphEdge is a directed edge in the rule co-occurrence graph, weighted
// by the lift of the rule that produced it.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

type RuleGraph struct {
	Nodes []string    `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// BasketResult bundles everything market basket analysis produces for a
// single (min_support, min_lift) request.
type BasketResult struct {
	Itemsets    []Itemset         `json:"itemsets"`
	TopItemsets []Itemset         `json:"top_itemsets"`
	Rules       []AssociationRule `json:"rules"`
	Graph       RuleGraph         `json:"graph"`
}

type ForecastPoint struct {
	Date      string  `json:"date"`
	Predicted float64 `json:"predicted"`
}
