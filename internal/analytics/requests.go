package analytics

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/apiwatch/dashboard/internal/daterange"
)

type requestTotals struct {
	totalRequests int64
	activeTokens  int64
	avgResponse   float64
	totalData     int64
	successCount  int64
}

// OverviewStats merges the request totals with the OCR cost summary of the
// same window.
func (s *Service) OverviewStats(ctx context.Context, r daterange.Range) (*OverviewStats, error) {
	w := s.window(r)
	stats, err := cached(ctx, s, cacheKey("overview", w), func(ctx context.Context) (*OverviewStats, error) {
		var (
			totals requestTotals
			ocr    *OcrCostSummary
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			totals, err = s.requestTotals(gctx, w)
			return err
		})
		g.Go(func() error {
			var err error
			ocr, err = s.ocrSummary(gctx, w)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return &OverviewStats{
			TotalRequests:           totals.totalRequests,
			ActiveTokens:            totals.activeTokens,
			SuccessRate:             percent(totals.successCount, totals.totalRequests),
			AvgResponseTime:         round2(totals.avgResponse),
			TotalData:               totals.totalData,
			OcrTotalRequests:        ocr.TotalResponses,
			OcrInputTokens:          ocr.TotalInputTokens,
			OcrOutputTokens:         ocr.TotalOutputTokens,
			OcrTotalTokens:          ocr.TotalTokens,
			OcrCostUsd:              ocr.TotalUsd,
			OcrCostThb:              ocr.TotalThb,
			OcrExchangeRate:         ocr.ExchangeRate,
			OcrInputRatePerMillion:  ocr.InputRatePerMillion,
			OcrOutputRatePerMillion: ocr.OutputRatePerMillion,
		}, nil
	})
	if err != nil {
		return nil, queryFailed("OverviewStats", MsgOverview, err)
	}
	return stats, nil
}

func (s *Service) requestTotals(ctx context.Context, w daterange.Window) (requestTotals, error) {
	d := s.db.Dialect()
	b := d.Binder()
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total_requests,
			COUNT(DISTINCT "apiToken") AS active_tokens,
			%s AS avg_response_time,
			CAST(COALESCE(SUM("requestBodySize"), 0) AS BIGINT) AS total_data,
			CAST(COALESCE(SUM(CASE WHEN "statusCode" >= 200 AND "statusCode" < 300 THEN 1 ELSE 0 END), 0) AS BIGINT) AS success_count
		FROM "RequestLog"
		WHERE %s
	`, d.Float(`COALESCE(AVG("responseTime"), 0)`), w.Predicate("").SQL(b))

	var t requestTotals
	err := s.db.QueryRowContext(ctx, query, b.Args()...).Scan(
		&t.totalRequests, &t.activeTokens, &t.avgResponse, &t.totalData, &t.successCount,
	)
	if err != nil {
		return requestTotals{}, fmt.Errorf("failed to query request totals: %w", err)
	}
	return t, nil
}

// TopEndpoints ranks paths by request count.
func (s *Service) TopEndpoints(ctx context.Context, r daterange.Range, limit int) ([]EndpointData, error) {
	limit = orDefault(limit, DefaultEndpointLimit)
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("top-endpoints", w, limit), func(ctx context.Context) ([]EndpointData, error) {
		d := s.db.Dialect()
		b := d.Binder()
		query := fmt.Sprintf(`
			SELECT
				"path",
				COUNT(*) AS request_count,
				%s AS avg_time
			FROM "RequestLog"
			WHERE %s
			GROUP BY "path"
			ORDER BY request_count DESC, "path" ASC
			LIMIT %s
		`, d.Float(`COALESCE(AVG("responseTime"), 0)`), w.Predicate("").SQL(b), b.Bind(limit))
		return s.queryEndpoints(ctx, query, b.Args())
	})
	if err != nil {
		return nil, queryFailed("TopEndpoints", MsgTopEndpoints, err)
	}
	return out, nil
}

// SlowestEndpoints ranks paths with at least minRequests requests by mean
// response time.
func (s *Service) SlowestEndpoints(ctx context.Context, r daterange.Range, limit, minRequests int) ([]EndpointData, error) {
	limit = orDefault(limit, DefaultEndpointLimit)
	minRequests = orDefault(minRequests, DefaultMinRequests)
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("slowest-endpoints", w, limit, minRequests), func(ctx context.Context) ([]EndpointData, error) {
		d := s.db.Dialect()
		b := d.Binder()
		query := fmt.Sprintf(`
			SELECT
				"path",
				COUNT(*) AS request_count,
				%s AS avg_time
			FROM "RequestLog"
			WHERE %s
			GROUP BY "path"
			HAVING COUNT(*) >= %s
			ORDER BY avg_time DESC, "path" ASC
			LIMIT %s
		`, d.Float(`COALESCE(AVG("responseTime"), 0)`), w.Predicate("").SQL(b), b.Bind(minRequests), b.Bind(limit))
		return s.queryEndpoints(ctx, query, b.Args())
	})
	if err != nil {
		return nil, queryFailed("SlowestEndpoints", MsgSlowestEndpoints, err)
	}
	return out, nil
}

func (s *Service) queryEndpoints(ctx context.Context, query string, args []any) ([]EndpointData, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoints: %w", err)
	}
	defer rows.Close()

	out := []EndpointData{}
	for rows.Next() {
		var e EndpointData
		if err := rows.Scan(&e.Path, &e.Count, &e.AvgTime); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		e.AvgTime = round2(e.AvgTime)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate endpoints: %w", err)
	}
	return out, nil
}

// ErrorProneEndpoints ranks paths with at least minRequests requests by the
// share of responses with status >= 400.
func (s *Service) ErrorProneEndpoints(ctx context.Context, r daterange.Range, limit, minRequests int) ([]ErrorProneEndpoint, error) {
	limit = orDefault(limit, DefaultEndpointLimit)
	minRequests = orDefault(minRequests, DefaultMinRequests)
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("error-prone-endpoints", w, limit, minRequests), func(ctx context.Context) ([]ErrorProneEndpoint, error) {
		d := s.db.Dialect()
		b := d.Binder()
		errorCount := `SUM(CASE WHEN "statusCode" >= 400 THEN 1 ELSE 0 END)`
		query := fmt.Sprintf(`
			SELECT
				"path",
				COUNT(*) AS total_requests,
				CAST(COALESCE(%s, 0) AS BIGINT) AS error_count,
				%s / COUNT(*) AS error_rate
			FROM "RequestLog"
			WHERE %s
			GROUP BY "path"
			HAVING COUNT(*) >= %s
			ORDER BY error_rate DESC, "path" ASC
			LIMIT %s
		`, errorCount, d.Float(errorCount), w.Predicate("").SQL(b), b.Bind(minRequests), b.Bind(limit))

		rows, err := s.db.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return nil, fmt.Errorf("failed to query error-prone endpoints: %w", err)
		}
		defer rows.Close()

		out := []ErrorProneEndpoint{}
		for rows.Next() {
			var e ErrorProneEndpoint
			var rate float64
			if err := rows.Scan(&e.Path, &e.TotalRequests, &e.ErrorCount, &rate); err != nil {
				return nil, fmt.Errorf("failed to scan error-prone endpoint: %w", err)
			}
			e.ErrorRate = percent(e.ErrorCount, e.TotalRequests)
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate error-prone endpoints: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, queryFailed("ErrorProneEndpoints", MsgErrorProne, err)
	}
	return out, nil
}

// EndpointsAnalysis fetches the three endpoint rankings with their default
// limits concurrently.
func (s *Service) EndpointsAnalysis(ctx context.Context, r daterange.Range) (*EndpointsAnalysis, error) {
	var out EndpointsAnalysis
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Top, err = s.TopEndpoints(gctx, r, DefaultEndpointLimit)
		return err
	})
	g.Go(func() error {
		var err error
		out.Slowest, err = s.SlowestEndpoints(gctx, r, DefaultEndpointLimit, DefaultMinRequests)
		return err
	})
	g.Go(func() error {
		var err error
		out.ErrorProne, err = s.ErrorProneEndpoints(gctx, r, DefaultEndpointLimit, DefaultMinRequests)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, queryFailed("EndpointsAnalysis", MsgEndpointsAnalysis, err)
	}
	return &out, nil
}

// UserAgentAnalysis counts requests per (user agent, method, status code).
// A missing user agent is reported as "Unknown".
func (s *Service) UserAgentAnalysis(ctx context.Context, r daterange.Range, limit int) ([]UserAgentData, error) {
	limit = orDefault(limit, DefaultUserAgentLimit)
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("user-agents", w, limit), func(ctx context.Context) ([]UserAgentData, error) {
		b := s.db.Dialect().Binder()
		query := fmt.Sprintf(`
			SELECT
				COALESCE("userAgent", 'Unknown') AS user_agent,
				"method",
				"statusCode",
				COUNT(*) AS request_count
			FROM "RequestLog"
			WHERE %s
			GROUP BY COALESCE("userAgent", 'Unknown'), "method", "statusCode"
			ORDER BY request_count DESC, user_agent ASC, "method" ASC, "statusCode" ASC
			LIMIT %s
		`, w.Predicate("").SQL(b), b.Bind(limit))

		rows, err := s.db.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return nil, fmt.Errorf("failed to query user agents: %w", err)
		}
		defer rows.Close()

		out := []UserAgentData{}
		for rows.Next() {
			var u UserAgentData
			if err := rows.Scan(&u.UserAgent, &u.Method, &u.StatusCode, &u.RequestCount); err != nil {
				return nil, fmt.Errorf("failed to scan user agent: %w", err)
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate user agents: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, queryFailed("UserAgentAnalysis", MsgUserAgentAnalysis, err)
	}
	return out, nil
}

// ErrorBreakdown counts error responses (status >= 400) per status code, with
// each code's share of all errors in the window.
func (s *Service) ErrorBreakdown(ctx context.Context, r daterange.Range) ([]ErrorData, error) {
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("errors", w), func(ctx context.Context) ([]ErrorData, error) {
		b := s.db.Dialect().Binder()
		query := fmt.Sprintf(`
			SELECT
				"statusCode",
				COUNT(*) AS error_count
			FROM "RequestLog"
			WHERE %s
				AND "statusCode" >= 400
			GROUP BY "statusCode"
			ORDER BY error_count DESC, "statusCode" ASC
		`, w.Predicate("").SQL(b))

		rows, err := s.db.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return nil, fmt.Errorf("failed to query error breakdown: %w", err)
		}
		defer rows.Close()

		out := []ErrorData{}
		var total int64
		for rows.Next() {
			var e ErrorData
			if err := rows.Scan(&e.StatusCode, &e.ErrorCount); err != nil {
				return nil, fmt.Errorf("failed to scan error breakdown: %w", err)
			}
			total += e.ErrorCount
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate error breakdown: %w", err)
		}
		for i := range out {
			out[i].Percentage = percent(out[i].ErrorCount, total)
		}
		return out, nil
	})
	if err != nil {
		return nil, queryFailed("ErrorBreakdown", MsgErrorBreakdown, err)
	}
	return out, nil
}

// MethodStats counts requests per HTTP method.
func (s *Service) MethodStats(ctx context.Context, r daterange.Range) ([]MethodData, error) {
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("methods", w), func(ctx context.Context) ([]MethodData, error) {
		d := s.db.Dialect()
		b := d.Binder()
		query := fmt.Sprintf(`
			SELECT
				"method",
				COUNT(*) AS request_count,
				%s AS avg_time
			FROM "RequestLog"
			WHERE %s
			GROUP BY "method"
			ORDER BY request_count DESC, "method" ASC
		`, d.Float(`COALESCE(AVG("responseTime"), 0)`), w.Predicate("").SQL(b))

		rows, err := s.db.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return nil, fmt.Errorf("failed to query method stats: %w", err)
		}
		defer rows.Close()

		out := []MethodData{}
		for rows.Next() {
			var m MethodData
			if err := rows.Scan(&m.Method, &m.Count, &m.AvgTime); err != nil {
				return nil, fmt.Errorf("failed to scan method stats: %w", err)
			}
			m.AvgTime = round2(m.AvgTime)
			out = append(out, m)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate method stats: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, queryFailed("MethodStats", MsgMethodStats, err)
	}
	return out, nil
}
