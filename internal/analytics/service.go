// Package analytics implements the read-only aggregation queries behind the
// dashboard: request rankings, user agent breakdowns and OCR cost estimates
// over the RequestLog and OcrResponse event tables.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/apiwatch/dashboard/internal/daterange"
	"github.com/apiwatch/dashboard/internal/exchangerate"
	"github.com/apiwatch/dashboard/internal/pricing"
	"github.com/apiwatch/dashboard/internal/store"
)

// Default limits applied when a caller passes a non-positive value.
const (
	DefaultEndpointLimit  = 5
	DefaultMinRequests    = 10
	DefaultUserAgentLimit = 50
	DefaultCompareLimit   = 10
	DefaultRoutesLimit    = 25
	DefaultOcrLimit       = 50

	DefaultOcrPath   = "/api/ocr"
	DefaultOcrMethod = "POST"

	unknownAgent = "Unknown"
	othersAgent  = "Others"
)

// RateSource supplies the USD to THB rate used to price OCR usage.
type RateSource interface {
	Get(ctx context.Context) exchangerate.Rate
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Normalizer daterange.Normalizer
	Rates      RateSource
	Pricing    pricing.Pricing

	// OcrPath and OcrMethod identify the OCR endpoint in RequestLog.
	OcrPath   string
	OcrMethod string

	CacheTTL        time.Duration
	CacheMaxEntries int64
}

// Service runs aggregation queries against the event store.
type Service struct {
	db         *store.DB
	normalizer daterange.Normalizer
	rates      RateSource
	pricing    pricing.Pricing
	ocrPath    string
	ocrMethod  string
	cache      *queryCache
}

// NewService returns a Service reading from db.
func NewService(db *store.DB, opts Options) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("analytics: nil store")
	}
	cache, err := newQueryCache(opts.CacheTTL, opts.CacheMaxEntries)
	if err != nil {
		return nil, err
	}
	if opts.Pricing == (pricing.Pricing{}) {
		opts.Pricing = pricing.Default()
	}
	if opts.OcrPath == "" {
		opts.OcrPath = DefaultOcrPath
	}
	if opts.OcrMethod == "" {
		opts.OcrMethod = DefaultOcrMethod
	}
	return &Service{
		db:         db,
		normalizer: opts.Normalizer,
		rates:      opts.Rates,
		pricing:    opts.Pricing,
		ocrPath:    opts.OcrPath,
		ocrMethod:  strings.ToUpper(opts.OcrMethod),
		cache:      cache,
	}, nil
}

// InvalidateCache drops every cached aggregation.
func (s *Service) InvalidateCache() {
	s.cache.clear()
}

// Close releases the query cache. The store is owned by the caller.
func (s *Service) Close() {
	s.cache.close()
}

func (s *Service) window(r daterange.Range) daterange.Window {
	return s.normalizer.Normalize(r)
}

func (s *Service) rate(ctx context.Context) exchangerate.Rate {
	if s.rates == nil {
		return exchangerate.Rate{Rate: pricing.DefaultUSDToTHB, Source: exchangerate.FallbackSource}
	}
	rate := s.rates.Get(ctx)
	rate.Rate = pricing.EffectiveRate(rate.Rate)
	return rate
}

func cacheKey(op string, w daterange.Window, params ...any) string {
	var sb strings.Builder
	sb.WriteString(op)
	sb.WriteByte('|')
	sb.WriteString(w.Key())
	for _, p := range params {
		fmt.Fprintf(&sb, "|%v", p)
	}
	return sb.String()
}

func percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return pricing.Round(float64(part)/float64(total)*100, 2)
}

func round2(v float64) float64 {
	return pricing.Round(v, 2)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// metricsColumns selects the success/error/latency aggregate shared by the
// user agent comparison and route queries.
func metricsColumns(d store.Dialect) string {
	return `COUNT(*) AS total_requests,
			CAST(COALESCE(SUM(CASE WHEN "statusCode" >= 200 AND "statusCode" < 300 THEN 1 ELSE 0 END), 0) AS BIGINT) AS success_count,
			CAST(COALESCE(SUM(CASE WHEN "statusCode" >= 400 THEN 1 ELSE 0 END), 0) AS BIGINT) AS error_count,
			` + d.Float(`COALESCE(AVG("responseTime"), 0)`) + ` AS avg_response_time`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetrics(row rowScanner, m *UserAgentMetrics, prefix ...any) error {
	dest := append(prefix, &m.TotalRequests, &m.SuccessCount, &m.ErrorCount, &m.AvgResponseTime)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	m.SuccessRate = percent(m.SuccessCount, m.TotalRequests)
	m.ErrorRate = percent(m.ErrorCount, m.TotalRequests)
	m.AvgResponseTime = round2(m.AvgResponseTime)
	return nil
}

// Health pings the store. It never fails; an unreachable store is reported
// as disconnected.
func (s *Service) Health(ctx context.Context) Health {
	status := "connected"
	if err := s.db.Ping(ctx); err != nil {
		log.WithError(err).Warn("database connection failed")
		status = "disconnected"
	}
	now := time.Now
	if s.normalizer.Now != nil {
		now = s.normalizer.Now
	}
	return Health{
		Status:    "ok",
		Database:  status,
		Timestamp: now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
