package models

import "time"

// Sale is one raw transaction row as stored or imported.
type Sale struct {
	TransactionID   string    `json:"transaction_id"`
	ProductName     string    `json:"product_name"`
	Quantity        int       `json:"quantity"`
	TransactionDate time.Time `json:"transaction_date"`
	DataSource      string    `json:"data_source,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

type Product struct {
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
}

// Observation is units of one product sold on one day.
type Observation struct {
	Date     time.Time `json:"date"`
	Quantity int       `json:"quantity"`
}

const (
	SourceManual = "manual"
	SourceCSV    = "csv"
	SourceXLSX   = "xlsx"
	SourceAPI    = "api"
)

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
