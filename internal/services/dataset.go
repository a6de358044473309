package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "ecom-dashboard/internal/errors"
	"ecom-dashboard/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize  = 10000
	maxWorkers = 10
	dateLayout = "2006-01-02"
)

// Column names the dashboard understands. Header matching is
// case-insensitive; anything else in the header is ignored.
type Column string

const (
	ColOrderID    Column = "OrderID"
	ColDate       Column = "Date"
	ColCustomerID Column = "CustomerID"
	ColAmount     Column = "Amount"
	ColCategory   Column = "Category"
)

var knownColumns = []Column{ColOrderID, ColDate, ColCustomerID, ColAmount, ColCategory}

// Dataset is an immutable snapshot of the sales table. Every analysis is
// a pure function of a Dataset and its parameters; uploading a new file
// builds a fresh Dataset rather than mutating this one.
type Dataset struct {
	rows     []models.Transaction
	columns  map[Column]bool
	source   string
	loadedAt time.Time
	skipped  int
}

func NewDataset(rows []models.Transaction, columns ...Column) *Dataset {
	present := make(map[Column]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	return &Dataset{
		rows:     rows,
		columns:  present,
		source:   "memory",
		loadedAt: time.Now(),
	}
}

func (d *Dataset) Rows() []models.Transaction {
	return d.rows
}

func (d *Dataset) Len() int {
	return len(d.rows)
}

func (d *Dataset) HasColumn(col Column) bool {
	return d.columns[col]
}

// RequireColumns is the schema validator: it confirms the column set the
// named analysis needs is present and returns a schema error naming the
// missing columns otherwise. It never touches the rows.
func (d *Dataset) RequireColumns(analysis string, cols ...Column) error {
	var missing []string
	for _, c := range cols {
		if !d.columns[c] {
			missing = append(missing, string(c))
		}
	}
	if len(missing) > 0 {
		return apperrors.Schema(analysis, missing)
	}
	return nil
}

// The sample table used when no file has been supplied.
const sampleCSV = `OrderID,Date,CustomerID,Amount,Category
1,2023-01-01,C001,200,Electronics
2,2023-01-02,C002,150,Fashion
3,2023-01-03,C003,300,Home
4,2023-01-04,C002,250,Electronics
5,2023-01-05,C001,100,Fashion
6,2023-01-06,C004,400,Electronics
7,2023-01-07,C003,200,Fashion
8,2023-01-08,C001,350,Home
9,2023-01-09,C002,220,Electronics`

// SampleDataset builds the embedded 9-row demo table.
func SampleDataset() *Dataset {
	ds, err := ParseCSV(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		// The sample is a compile-time literal; failing to parse it is a bug.
		panic(fmt.Sprintf("embedded sample dataset invalid: %v", err))
	}
	ds.source = "sample"
	return ds
}

// LoadCSVFile reads a dataset from disk.
func LoadCSVFile(ctx context.Context, filename string) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, apperrors.ParseWrap(err, "open dataset file")
	}
	defer file.Close()

	ds, err := ParseCSV(ctx, file)
	if err != nil {
		return nil, err
	}
	ds.source = filename
	return ds, nil
}

// ParseCSV reads a delimited-text sales table. Rows with unparseable
// dates keep a zero date instead of being dropped; unparseable amounts
// become NaN and are excluded from sums downstream. Only a wholly
// unparseable input is an error.
func ParseCSV(ctx context.Context, r io.Reader) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	if !scanner.Scan() {
		return nil, apperrors.Parse("empty file")
	}

	index, present := parseHeader(scanner.Text())
	if len(present) == 0 {
		return nil, apperrors.Parse("header contains none of the expected columns (OrderID, Date, CustomerID, Amount, Category)")
	}

	ds := &Dataset{
		columns:  present,
		loadedAt: time.Now(),
		source:   "upload",
	}

	batch := make([]string, 0, batchSize)
	lineCount := 0

	flush := func() error {
		rows, skipped, err := parseBatch(ctx, batch, index)
		if err != nil {
			return err
		}
		ds.rows = append(ds.rows, rows...)
		ds.skipped += skipped
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineCount++
		batch = append(batch, line)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if err := scanner.Err(); err != nil {
		return nil, apperrors.ParseWrap(err, "read dataset")
	}

	if lineCount > 0 && len(ds.rows) == 0 {
		return nil, apperrors.Parse("no valid records found")
	}

	return ds, nil
}

func parseHeader(line string) (map[Column]int, map[Column]bool) {
	fields := strings.Split(line, ",")
	index := make(map[Column]int)
	present := make(map[Column]bool)

	for i, f := range fields {
		name := strings.TrimSpace(f)
		for _, col := range knownColumns {
			if strings.EqualFold(name, string(col)) {
				index[col] = i
				present[col] = true
			}
		}
	}
	return index, present
}

// parseBatch converts raw lines to transactions with bounded parallelism,
// preserving input order.
func parseBatch(ctx context.Context, batch []string, index map[Column]int) ([]models.Transaction, int, error) {
	type parsedRow struct {
		tx    models.Transaction
		valid bool
	}
	results := make([]parsedRow, len(batch))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	for i, line := range batch {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			tx, ok := parseTransaction(strings.Split(line, ","), index)
			results[i] = parsedRow{tx: tx, valid: ok}
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, 0, err
	}

	rows := make([]models.Transaction, 0, len(batch))
	skipped := 0
	for _, pr := range results {
		if pr.valid {
			rows = append(rows, pr.tx)
		} else {
			skipped++
		}
	}
	return rows, skipped, nil
}

// parseTransaction coerces a record into a typed row. A record too short
// to carry the mapped columns is invalid; bad dates and amounts are
// coerced to their missing markers rather than rejecting the row.
func parseTransaction(record []string, index map[Column]int) (models.Transaction, bool) {
	for _, i := range index {
		if i >= len(record) {
			return models.Transaction{}, false
		}
	}

	field := func(col Column) (string, bool) {
		i, ok := index[col]
		if !ok {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	tx := models.Transaction{Amount: math.NaN()}

	if v, ok := field(ColOrderID); ok {
		tx.OrderID = v
	}
	if v, ok := field(ColCustomerID); ok {
		tx.CustomerID = v
	}
	if v, ok := field(ColCategory); ok {
		tx.Category = v
	}
	if v, ok := field(ColDate); ok {
		if date, err := time.Parse(dateLayout, v); err == nil {
			tx.Date = date
		}
	}
	if v, ok := field(ColAmount); ok {
		if amount, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(amount, 0) {
			tx.Amount = amount
		}
	}

	return tx, true
}
