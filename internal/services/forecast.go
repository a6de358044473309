package services

import (
	"fmt"
	"math"
	"slices"
	"time"

	apperrors "ecom-dashboard/internal/errors"
	"ecom-dashboard/internal/models"
	"gonum.org/v1/gonum/mat"
)

// DefaultForecastHorizon is the number of future days projected.
const DefaultForecastHorizon = 7

const minForecastObservations = 5

// ForecastDailySales fits an ARIMA(1,1,1) model to the daily sales
// series and projects it horizon days past the last observed date, one
// contiguous daily step per point. Estimation is the Hannan-Rissanen
// two-stage least-squares procedure: difference once, approximate the
// innovations with a long autoregression, then regress the differenced
// series on its own lag and the lagged innovation. A single fit attempt
// is made; any failure comes back as a recoverable forecast error
// carrying the cause.
func ForecastDailySales(ds *Dataset, horizon int) ([]models.ForecastPoint, error) {
	if horizon < 1 {
		horizon = DefaultForecastHorizon
	}

	dates, values := dailySeries(ds)
	n := len(values)
	if n < minForecastObservations {
		return nil, apperrors.Forecast(
			fmt.Errorf("series has %d observations, need at least %d", n, minForecastObservations),
			"not enough data to fit ARIMA(1,1,1)",
		)
	}

	// d=1: work on first differences.
	w := make([]float64, n-1)
	for i := 1; i < n; i++ {
		w[i-1] = values[i] - values[i-1]
	}

	phi, theta, eps, err := fitARMA11(w)
	if err != nil {
		return nil, apperrors.Forecast(err, "ARIMA(1,1,1) fit failed")
	}

	// Forecast the differences, then integrate back to levels. The MA
	// term only contributes to the first step; innovations beyond the
	// sample are zero in expectation.
	lastDate := dates[n-1]
	level := values[n-1]
	diff := phi*w[len(w)-1] + theta*eps[len(eps)-1]

	result := make([]models.ForecastPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		level += diff
		result = append(result, models.ForecastPoint{
			Date:      lastDate.AddDate(0, 0, step).Format(dateLayout),
			Predicted: level,
		})
		diff = phi * diff
	}
	return result, nil
}

// dailySeries returns the observed daily sums in ascending date order.
func dailySeries(ds *Dataset) ([]time.Time, []float64) {
	byDay := make(map[time.Time]float64)
	for _, tx := range ds.Rows() {
		if !tx.HasDate() || math.IsNaN(tx.Amount) {
			continue
		}
		byDay[tx.Date.Truncate(24*time.Hour)] += tx.Amount
	}

	dates := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		dates = append(dates, day)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	values := make([]float64, len(dates))
	for i, day := range dates {
		values[i] = byDay[day]
	}
	return dates, values
}

// fitARMA11 estimates phi and theta for w_t = phi*w_{t-1} + theta*e_{t-1}
// + e_t and returns the in-sample innovations alongside them.
func fitARMA11(w []float64) (phi, theta float64, eps []float64, err error) {
	m := len(w)

	// Stage 1: long AR to proxy the unobserved innovations.
	p := m / 3
	if p > 8 {
		p = 8
	}
	if p < 1 || m-p <= p {
		return 0, 0, nil, fmt.Errorf("differenced series too short (%d points)", m)
	}

	x1 := mat.NewDense(m-p, p, nil)
	y1 := mat.NewVecDense(m-p, nil)
	for t := p; t < m; t++ {
		for j := 0; j < p; j++ {
			x1.Set(t-p, j, w[t-1-j])
		}
		y1.SetVec(t-p, w[t])
	}
	arCoef, err := solveLeastSquares(x1, y1)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("long autoregression: %w", err)
	}

	resid := make([]float64, m)
	for t := p; t < m; t++ {
		fitted := 0.0
		for j := 0; j < p; j++ {
			fitted += arCoef[j] * w[t-1-j]
		}
		resid[t] = w[t] - fitted
	}

	// Stage 2: regress on the lagged value and lagged residual proxy.
	rows := m - p - 1
	if rows < 2 {
		return 0, 0, nil, fmt.Errorf("differenced series too short (%d points)", m)
	}
	x2 := mat.NewDense(rows, 2, nil)
	y2 := mat.NewVecDense(rows, nil)
	for t := p + 1; t < m; t++ {
		x2.Set(t-p-1, 0, w[t-1])
		x2.Set(t-p-1, 1, resid[t-1])
		y2.SetVec(t-p-1, w[t])
	}
	coef, err := solveLeastSquares(x2, y2)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("ARMA regression: %w", err)
	}
	phi, theta = coef[0], coef[1]

	if math.IsNaN(phi) || math.IsNaN(theta) || math.IsInf(phi, 0) || math.IsInf(theta, 0) {
		return 0, 0, nil, fmt.Errorf("degenerate coefficient estimates (phi=%v, theta=%v)", phi, theta)
	}

	// In-sample innovations under the fitted model.
	eps = make([]float64, m)
	for t := 1; t < m; t++ {
		eps[t] = w[t] - phi*w[t-1] - theta*eps[t-1]
	}
	return phi, theta, eps, nil
}

func solveLeastSquares(x *mat.Dense, y *mat.VecDense) ([]float64, error) {
	rows, cols := x.Dims()
	if rows < cols {
		return nil, fmt.Errorf("underdetermined system: %d equations, %d unknowns", rows, cols)
	}

	var qr mat.QR
	qr.Factorize(x)

	coef := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(coef, false, y); err != nil {
		return nil, fmt.Errorf("singular design matrix: %w", err)
	}

	out := make([]float64, cols)
	for i := range out {
		out[i] = coef.AtVec(i)
	}
	return out, nil
}
