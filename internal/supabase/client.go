// Package supabase is a Store over a Supabase project's PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/bighogz/Kirana-Predict/internal/config"
	"github.com/bighogz/Kirana-Predict/internal/httpclient"
	"github.com/bighogz/Kirana-Predict/internal/models"
	"github.com/bighogz/Kirana-Predict/internal/store"
)

const (
	restPath      = "/rest/v1"
	salesTable    = "sales"
	productsTable = "products"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

// New builds a client for creds. A nil hc uses the shared default.
func New(creds config.Credentials, hc *http.Client) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if hc == nil {
		hc = httpclient.Default
	}
	return &Client{baseURL: creds.URL + restPath, apiKey: creds.Key, http: hc, now: time.Now}, nil
}

var _ store.Store = (*Client)(nil)

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return "supabase " + strconv.Itoa(e.Status) + " " + e.Code + ": " + msg
	}
	return "supabase " + strconv.Itoa(e.Status) + ": " + msg
}

type saleRow struct {
	TransactionID   string `json:"transaction_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	TransactionDate string `json:"transaction_date"`
	DataSource      string `json:"data_source,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

func (r saleRow) toSale() (models.Sale, error) {
	d, err := parseDate(r.TransactionDate)
	if err != nil {
		return models.Sale{}, err
	}
	s := models.Sale{
		TransactionID:   r.TransactionID,
		ProductName:     r.ProductName,
		Quantity:        r.Quantity,
		TransactionDate: d,
		DataSource:      r.DataSource,
	}
	if r.CreatedAt != "" {
		s.CreatedAt, _ = parseDate(r.CreatedAt)
	}
	return s, nil
}

// parseDate accepts a bare date or a full timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s[:min(10, len(s))])
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "transaction_date %q", s)
	}
	return t, nil
}

func (c *Client) do(ctx context.Context, method, table string, params url.Values, body interface{}, prefer string, out interface{}) error {
	u := c.baseURL + "/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "supabase Marshal")
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return errors.Wrap(err, "supabase NewRequest")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "supabase %s %s", method, table)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "supabase decode %s", table)
	}
	return nil
}

func (c *Client) selectSales(ctx context.Context, params url.Values) ([]models.Sale, error) {
	params.Set("select", "*")
	var rows []saleRow
	if err := c.do(ctx, http.MethodGet, salesTable, params, nil, "", &rows); err != nil {
		return nil, err
	}
	out := make([]models.Sale, 0, len(rows))
	for _, r := range rows {
		s, err := r.toSale()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) AllSales(ctx context.Context) ([]models.Sale, error) {
	return c.selectSales(ctx, url.Values{"order": {"transaction_date.asc"}})
}

func (c *Client) SalesForProduct(ctx context.Context, product string) ([]models.Sale, error) {
	return c.selectSales(ctx, url.Values{
		"product_name": {"ilike." + product},
		"order":        {"transaction_date.asc"},
	})
}

func (c *Client) RecentSales(ctx context.Context, days int) ([]models.Sale, error) {
	since := c.now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	return c.selectSales(ctx, url.Values{
		"transaction_date": {"gte." + since},
		"order":            {"transaction_date.desc"},
	})
}

func (c *Client) AddSale(ctx context.Context, s models.Sale) (models.Sale, error) {
	s, err := store.PrepareSale(s, models.SourceManual, c.now())
	if err != nil {
		return s, err
	}
	row := saleRow{
		TransactionID:   s.TransactionID,
		ProductName:     s.ProductName,
		Quantity:        s.Quantity,
		TransactionDate: s.TransactionDate.UTC().Format(time.RFC3339),
		DataSource:      s.DataSource,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	var created []saleRow
	if err := c.do(ctx, http.MethodPost, salesTable, nil, row, "return=representation", &created); err != nil {
		var apiErr *APIError
		// 23505 is postgres unique_violation
		if errors.As(err, &apiErr) && apiErr.Code == "23505" {
			return s, errors.Wrap(store.ErrDuplicateSale, s.TransactionID)
		}
		return s, err
	}
	product := map[string]string{"name": s.ProductName}
	err = c.do(ctx, http.MethodPost, productsTable, url.Values{"on_conflict": {"name"}}, product, "resolution=ignore-duplicates", nil)
	if err != nil {
		return s, err
	}
	if len(created) == 0 {
		return s, nil
	}
	return created[0].toSale()
}

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := c.do(ctx, http.MethodGet, productsTable, url.Values{"select": {"*"}, "order": {"name.asc"}}, nil, "", &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpsertProduct(ctx context.Context, p models.Product) error {
	if p.Name == "" {
		return errors.New("UpsertProduct: name is required")
	}
	params := url.Values{"on_conflict": {"name"}}
	return c.do(ctx, http.MethodPost, productsTable, params, p, "resolution=merge-duplicates", nil)
}

// Ping reads a single row of the sales table.
func (c *Client) Ping(ctx context.Context) error {
	var rows []json.RawMessage
	return c.do(ctx, http.MethodGet, salesTable, url.Values{"select": {"*"}, "limit": {"1"}}, nil, "", &rows)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
