// Package planner answers inventory questions for one product or the
// whole catalogue by loading sales from a store and running the forecast
// core over them.
package planner

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bighogz/Kirana-Predict/internal/aggregator"
	"github.com/bighogz/Kirana-Predict/internal/config"
	"github.com/bighogz/Kirana-Predict/internal/forecast"
	"github.com/bighogz/Kirana-Predict/internal/models"
	"github.com/bighogz/Kirana-Predict/internal/store"
)

var ErrProductNotFound = errors.New("product not found")

type Planner struct {
	store  store.Store
	log    *logrus.Logger
	tracer trace.Tracer
}

func New(st store.Store, log *logrus.Logger, tracer trace.Tracer) *Planner {
	return &Planner{store: st, log: log, tracer: tracer}
}

// Inventory is the restock view of one product.
type Inventory struct {
	Product      string               `json:"product"`
	CurrentStock int                  `json:"current_stock"`
	LookbackDays int                  `json:"lookback_days"`
	Advisory     forecast.Advisory    `json:"advisory"`
	DailyTrend   []models.Observation `json:"daily_trend"`
}

type Projection struct {
	Product     string               `json:"product"`
	HorizonDays int                  `json:"horizon_days"`
	Points      []forecast.Point     `json:"points"`
	FitScore    float64              `json:"fit_score"`
	Reliability forecast.Reliability `json:"reliability"`
	TotalDemand float64              `json:"total_demand"`
}

type RestockEntry struct {
	Product          string           `json:"product"`
	TotalSold        int              `json:"total_sold"`
	AverageDailyRate float64          `json:"average_daily_rate"`
	DaysRemaining    float64          `json:"days_remaining"`
	Urgency          forecast.Urgency `json:"urgency"`
}

func (p *Planner) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (p *Planner) observations(ctx context.Context, product string) ([]models.Observation, error) {
	sales, err := p.store.SalesForProduct(ctx, product)
	if err != nil {
		return nil, errors.Wrap(err, "load sales")
	}
	obs := aggregator.Observations(sales, product)
	if len(obs) == 0 {
		return nil, errors.Wrap(ErrProductNotFound, product)
	}
	return obs, nil
}

// Inventory advises on product's stock using sales in the last
// lookbackDays before its most recent sale. The window is clamped to
// the supported range.
func (p *Planner) Inventory(ctx context.Context, product string, stock, lookbackDays int) (*Inventory, error) {
	product = strings.TrimSpace(product)
	lookbackDays = config.ClampLookback(lookbackDays)
	ctx, span := p.start(ctx, "planner.Inventory",
		attribute.String("product", product),
		attribute.Int("stock", stock),
		attribute.Int("lookback_days", lookbackDays))
	defer span.End()

	if product == "" {
		return nil, fail(span, errors.Wrap(forecast.ErrInvalidInput, "product is required"))
	}
	obs, err := p.observations(ctx, product)
	if err != nil {
		return nil, fail(span, err)
	}
	window := aggregator.Window(obs, lookbackDays)
	adv, err := forecast.Advise(window, stock)
	if err != nil {
		return nil, fail(span, err)
	}
	rounded := adv.Rounded()
	span.SetAttributes(attribute.String("urgency", string(rounded.Urgency)))
	p.log.WithFields(logrus.Fields{
		"product":        product,
		"stock":          stock,
		"days_remaining": rounded.DaysRemaining,
		"urgency":        rounded.Urgency,
	}).Debug("inventory advisory")

	return &Inventory{
		Product:      product,
		CurrentStock: stock,
		LookbackDays: lookbackDays,
		Advisory:     rounded,
		DailyTrend:   aggregator.DailyTotals(window),
	}, nil
}

// Forecast projects demand for product from its full sales history.
// Horizons past config.MaxHorizonDays are rejected.
func (p *Planner) Forecast(ctx context.Context, product string, horizon int) (*Projection, error) {
	product = strings.TrimSpace(product)
	ctx, span := p.start(ctx, "planner.Forecast",
		attribute.String("product", product),
		attribute.Int("horizon", horizon))
	defer span.End()

	if product == "" {
		return nil, fail(span, errors.Wrap(forecast.ErrInvalidInput, "product is required"))
	}
	if horizon > config.MaxHorizonDays {
		return nil, fail(span, errors.Wrapf(forecast.ErrInvalidInput,
			"horizon must be <= %d days, got %d", config.MaxHorizonDays, horizon))
	}
	obs, err := p.observations(ctx, product)
	if err != nil {
		return nil, fail(span, err)
	}
	res, err := forecast.Forecast(obs, horizon)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Float64("fit_score", res.FitScore))
	p.log.WithFields(logrus.Fields{
		"product":   product,
		"horizon":   horizon,
		"fit_score": res.FitScore,
	}).Debug("forecast computed")

	return &Projection{
		Product:     product,
		HorizonDays: horizon,
		Points:      res.Points,
		FitScore:    forecast.Round1(res.FitScore),
		Reliability: res.Reliability(),
		TotalDemand: res.TotalDemand(),
	}, nil
}

// RestockReport rates the n best-selling products as if each had stock
// units on hand, most urgent first.
func (p *Planner) RestockReport(ctx context.Context, stock, n int) ([]RestockEntry, error) {
	ctx, span := p.start(ctx, "planner.RestockReport",
		attribute.Int("stock", stock),
		attribute.Int("limit", n))
	defer span.End()

	if stock < 0 {
		return nil, fail(span, errors.Wrapf(forecast.ErrInvalidInput, "stock must be >= 0, got %d", stock))
	}
	sales, err := p.store.AllSales(ctx)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load sales"))
	}
	top := aggregator.TopProducts(sales, time.Time{}, time.Time{}, n)
	out := make([]RestockEntry, 0, len(top))
	for _, t := range top {
		obs := aggregator.Observations(sales, t.Product)
		adv, err := forecast.Advise(obs, stock)
		if err != nil {
			p.log.WithError(err).WithField("product", t.Product).Warn("skipping product in restock report")
			continue
		}
		r := adv.Rounded()
		out = append(out, RestockEntry{
			Product:          t.Product,
			TotalSold:        t.Quantity,
			AverageDailyRate: r.AverageDailyRate,
			DaysRemaining:    r.DaysRemaining,
			Urgency:          r.Urgency,
		})
	}
	sortByUrgency(out)
	span.SetAttributes(attribute.Int("entries", len(out)))
	return out, nil
}

var urgencyRank = map[forecast.Urgency]int{
	forecast.UrgencyCritical: 0,
	forecast.UrgencyLow:      1,
	forecast.UrgencyHealthy:  2,
}

// sortByUrgency orders entries CRITICAL first, then by fewest days left.
func sortByUrgency(entries []RestockEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if urgencyRank[a.Urgency] != urgencyRank[b.Urgency] {
			return urgencyRank[a.Urgency] < urgencyRank[b.Urgency]
		}
		return a.DaysRemaining < b.DaysRemaining
	})
}
