package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Dashboard is the single page of the app. All data arrives through the
// /sse and /api endpoints; the page itself is static.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardHTML)
		return err
	})
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>E-commerce Sales Analytics</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@main/bundles/datastar.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #f7f7f9; }
h1 { font-size: 1.4rem; }
.card { background: #fff; border-radius: 8px; padding: 1rem; margin-bottom: 1rem; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
.controls label { margin-right: 1rem; font-size: .9rem; }
.warning { color: #8a6d3b; background: #fcf8e3; padding: .5rem 1rem; border-radius: 4px; }
table.modern-table { border-collapse: collapse; width: 100%; }
table.modern-table th, table.modern-table td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #eee; }
</style>
</head>
<body data-signals="{overviewData: {}, dailyData: [], categoryData: [], basketData: {}, forecastData: []}"
      data-on-load="@get('/sse/refresh-all')">
<h1>📊 E-commerce Sales Analytics Dashboard</h1>

<div class="card">
  <h2>Overview</h2>
  <div id="overview-content">Loading KPIs…</div>
</div>

<div class="card">
  <h2>Daily Sales Trend</h2>
  <div id="daily-content" data-text="JSON.stringify($dailyData)"></div>
</div>

<div class="card">
  <h2>Sales by Category</h2>
  <div id="category-content" data-text="JSON.stringify($categoryData)"></div>
</div>

<div class="card">
  <h2>Customer Segmentation (RFM)</h2>
  <div id="rfm-content">Loading RFM table…</div>
</div>

<div class="card">
  <h2>Market Basket Analysis</h2>
  <div class="controls">
    <label>Min support <input type="range" min="0.01" max="0.5" step="0.01" value="0.05" data-bind-minsupport></label>
    <label>Min lift <input type="range" min="0.1" max="5.0" step="0.1" value="1.0" data-bind-minlift></label>
    <button data-on-click="@get('/sse/basket')">Mine</button>
  </div>
  <div id="basket-content">Loading basket analysis…</div>
  <div id="basket-rules-content"></div>
</div>

<div class="card">
  <h2>Sales Forecast (7 days)</h2>
  <div id="forecast-content" data-text="JSON.stringify($forecastData)"></div>
</div>

</body>
</html>`
