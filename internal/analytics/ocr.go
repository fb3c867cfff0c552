package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/apiwatch/dashboard/internal/daterange"
	"github.com/apiwatch/dashboard/internal/store"
)

type ocrTotals struct {
	responses    int64
	inputTokens  float64
	outputTokens float64
}

func tokenSum(d store.Dialect, alias, key string) string {
	return d.Float("COALESCE(SUM(" + d.JSONNumber(store.Column(alias, "token"), key) + "), 0)")
}

func (s *Service) ocrTotals(ctx context.Context, w daterange.Window) (ocrTotals, error) {
	d := s.db.Dialect()
	b := d.Binder()
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total_responses,
			%s AS total_input_tokens,
			%s AS total_output_tokens
		FROM "OcrResponse" AS "o"
		WHERE %s
	`, tokenSum(d, "o", "input"), tokenSum(d, "o", "output"), w.Predicate("o").SQL(b))

	var t ocrTotals
	if err := s.db.QueryRowContext(ctx, query, b.Args()...).Scan(&t.responses, &t.inputTokens, &t.outputTokens); err != nil {
		return ocrTotals{}, fmt.Errorf("failed to query OCR totals: %w", err)
	}
	return t, nil
}

func (s *Service) ocrSummary(ctx context.Context, w daterange.Window) (*OcrCostSummary, error) {
	t, err := s.ocrTotals(ctx, w)
	if err != nil {
		return nil, err
	}
	in := int64(math.Round(t.inputTokens))
	out := int64(math.Round(t.outputTokens))
	rate := s.rate(ctx)
	cost := s.pricing.Calculate(in, out, rate.Rate)
	return &OcrCostSummary{
		TotalResponses:         t.responses,
		TotalInputTokens:       in,
		TotalOutputTokens:      out,
		TotalTokens:            in + out,
		TotalUsd:               cost.USD,
		TotalThb:               cost.THB,
		ExchangeRate:           rate.Rate,
		ExchangeRateLastUpdate: rate.LastUpdate,
		ExchangeRateSource:     rate.Source,
		InputRatePerMillion:    s.pricing.InputPerMillion,
		OutputRatePerMillion:   s.pricing.OutputPerMillion,
	}, nil
}

// OcrCostSummary totals OCR token usage in the window and prices it with the
// current exchange rate.
func (s *Service) OcrCostSummary(ctx context.Context, r daterange.Range) (*OcrCostSummary, error) {
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("ocr-summary", w), func(ctx context.Context) (*OcrCostSummary, error) {
		return s.ocrSummary(ctx, w)
	})
	if err != nil {
		return nil, queryFailed("OcrCostSummary", MsgOcrSummary, err)
	}
	return out, nil
}

// OcrCostByUserAgent attributes OCR usage to user agents by joining each OCR
// response to its originating request. Responses without a matching request
// are reported under "Unknown". A non-empty userAgent restricts the result to
// that agent.
func (s *Service) OcrCostByUserAgent(ctx context.Context, r daterange.Range, userAgent string, limit int) ([]OcrUserAgentCost, error) {
	limit = orDefault(limit, DefaultOcrLimit)
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("ocr-user-agents", w, strconv.Quote(userAgent), limit), func(ctx context.Context) ([]OcrUserAgentCost, error) {
		d := s.db.Dialect()
		b := d.Binder()
		filter := ""
		predicate := w.Predicate("o").SQL(b)
		if userAgent != "" {
			filter = `AND COALESCE("r"."userAgent", 'Unknown') = ` + b.Bind(userAgent)
		}
		query := fmt.Sprintf(`
			SELECT
				COALESCE("r"."userAgent", 'Unknown') AS user_agent,
				COUNT(*) AS request_count,
				%s AS input_tokens,
				%s AS output_tokens
			FROM "OcrResponse" AS "o"
			LEFT JOIN "RequestLog" AS "r" ON "r"."id" = "o"."requestId"
			WHERE %s
				%s
			GROUP BY COALESCE("r"."userAgent", 'Unknown')
			ORDER BY request_count DESC, user_agent ASC
			LIMIT %s
		`, tokenSum(d, "o", "input"), tokenSum(d, "o", "output"), predicate, filter, b.Bind(limit))

		rows, err := s.db.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return nil, fmt.Errorf("failed to query OCR user agent costs: %w", err)
		}
		defer rows.Close()

		rate := s.rate(ctx).Rate
		out := []OcrUserAgentCost{}
		for rows.Next() {
			var c OcrUserAgentCost
			var in, outTokens float64
			if err := rows.Scan(&c.UserAgent, &c.RequestCount, &in, &outTokens); err != nil {
				return nil, fmt.Errorf("failed to scan OCR user agent cost: %w", err)
			}
			c.InputTokens = int64(math.Round(in))
			c.OutputTokens = int64(math.Round(outTokens))
			c.TotalTokens = c.InputTokens + c.OutputTokens
			cost := s.pricing.Calculate(c.InputTokens, c.OutputTokens, rate)
			c.UsdCost, c.ThbCost = cost.USD, cost.THB
			out = append(out, c)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate OCR user agent costs: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, queryFailed("OcrCostByUserAgent", MsgOcrUserAgentCosts, err)
	}
	return out, nil
}

// OcrCostByPath estimates OCR usage per (path, method, user agent) for calls
// to the OCR endpoint. OCR responses carry no caller identity, so each group
// is allocated the window's average tokens per OCR response multiplied by its
// request count. The figures are an approximation, not a measurement.
// userAgent "" or "all" disables the agent filter.
func (s *Service) OcrCostByPath(ctx context.Context, r daterange.Range, userAgent string, limit int) ([]OcrPathCost, error) {
	limit = orDefault(limit, DefaultOcrLimit)
	if userAgent == "all" {
		userAgent = ""
	}
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("ocr-paths", w, strconv.Quote(userAgent), limit), func(ctx context.Context) ([]OcrPathCost, error) {
		totals, err := s.ocrTotals(ctx, w)
		if err != nil {
			return nil, err
		}
		var avgIn, avgOut float64
		if totals.responses > 0 {
			avgIn = totals.inputTokens / float64(totals.responses)
			avgOut = totals.outputTokens / float64(totals.responses)
		}

		b := s.db.Dialect().Binder()
		predicate := w.Predicate("r").SQL(b)
		endpoint := `AND "r"."path" = ` + b.Bind(s.ocrPath) + ` AND "r"."method" = ` + b.Bind(s.ocrMethod)
		filter := ""
		if userAgent != "" {
			filter = `AND COALESCE("r"."userAgent", 'Unknown') = ` + b.Bind(userAgent)
		}
		query := fmt.Sprintf(`
			SELECT
				"r"."path",
				"r"."method",
				COALESCE("r"."userAgent", 'Unknown') AS user_agent,
				COUNT(*) AS request_count
			FROM "RequestLog" AS "r"
			WHERE %s
				%s
				%s
			GROUP BY "r"."path", "r"."method", COALESCE("r"."userAgent", 'Unknown')
			ORDER BY request_count DESC, user_agent ASC
			LIMIT %s
		`, predicate, endpoint, filter, b.Bind(limit))

		rows, err := s.db.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return nil, fmt.Errorf("failed to query OCR path costs: %w", err)
		}
		defer rows.Close()

		rate := s.rate(ctx).Rate
		out := []OcrPathCost{}
		for rows.Next() {
			var c OcrPathCost
			if err := rows.Scan(&c.Path, &c.Method, &c.UserAgent, &c.RequestCount); err != nil {
				return nil, fmt.Errorf("failed to scan OCR path cost: %w", err)
			}
			c.InputTokens = int64(math.Round(float64(c.RequestCount) * avgIn))
			c.OutputTokens = int64(math.Round(float64(c.RequestCount) * avgOut))
			c.TotalTokens = c.InputTokens + c.OutputTokens
			cost := s.pricing.Calculate(c.InputTokens, c.OutputTokens, rate)
			c.UsdCost, c.ThbCost = cost.USD, cost.THB
			out = append(out, c)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate OCR path costs: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, queryFailed("OcrCostByPath", MsgOcrPathCosts, err)
	}
	return out, nil
}
