package analytics

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/apiwatch/dashboard/internal/daterange"
)

// UserAgentComparison compares primaryAgent against every other agent.
// With groupOthers the rest is folded into one "Others" entry, including
// requests without a user agent; otherwise the top limit agents are listed
// individually, ordered by request count.
func (s *Service) UserAgentComparison(ctx context.Context, r daterange.Range, primaryAgent string, groupOthers bool, limit int) (*UserAgentComparison, error) {
	limit = orDefault(limit, DefaultCompareLimit)
	w := s.window(r)
	key := cacheKey("compare", w, strconv.Quote(primaryAgent), groupOthers, limit)
	out, err := cached(ctx, s, key, func(ctx context.Context) (*UserAgentComparison, error) {
		var (
			primary UserAgentMetrics
			others  []UserAgentMetrics
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			primary, err = s.primaryMetrics(gctx, w, primaryAgent)
			return err
		})
		g.Go(func() error {
			var err error
			if groupOthers {
				others, err = s.groupedOthers(gctx, w, primaryAgent)
			} else {
				others, err = s.individualOthers(gctx, w, primaryAgent, limit)
			}
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		total := primary.TotalRequests
		for _, o := range others {
			total += o.TotalRequests
		}
		var summary ComparisonSummary
		if total > 0 {
			summary.PrimaryPercentage = percent(primary.TotalRequests, total)
			summary.OthersPercentage = round2(100 - summary.PrimaryPercentage)
		}
		return &UserAgentComparison{Primary: primary, Others: others, Summary: summary}, nil
	})
	if err != nil {
		return nil, queryFailed("UserAgentComparison", MsgUserAgentCompare, err)
	}
	return out, nil
}

func (s *Service) primaryMetrics(ctx context.Context, w daterange.Window, primaryAgent string) (UserAgentMetrics, error) {
	b := s.db.Dialect().Binder()
	query := fmt.Sprintf(`
		SELECT
			%s
		FROM "RequestLog"
		WHERE %s
			AND "userAgent" = %s
	`, metricsColumns(s.db.Dialect()), w.Predicate("").SQL(b), b.Bind(primaryAgent))

	m := UserAgentMetrics{UserAgent: primaryAgent}
	if err := scanMetrics(s.db.QueryRowContext(ctx, query, b.Args()...), &m); err != nil {
		return UserAgentMetrics{}, fmt.Errorf("failed to query primary agent metrics: %w", err)
	}
	return m, nil
}

func (s *Service) groupedOthers(ctx context.Context, w daterange.Window, primaryAgent string) ([]UserAgentMetrics, error) {
	b := s.db.Dialect().Binder()
	query := fmt.Sprintf(`
		SELECT
			%s
		FROM "RequestLog"
		WHERE %s
			AND ("userAgent" IS NULL OR "userAgent" <> %s)
	`, metricsColumns(s.db.Dialect()), w.Predicate("").SQL(b), b.Bind(primaryAgent))

	m := UserAgentMetrics{UserAgent: othersAgent}
	if err := scanMetrics(s.db.QueryRowContext(ctx, query, b.Args()...), &m); err != nil {
		return nil, fmt.Errorf("failed to query other agents: %w", err)
	}
	if m.TotalRequests == 0 {
		return []UserAgentMetrics{}, nil
	}
	return []UserAgentMetrics{m}, nil
}

func (s *Service) individualOthers(ctx context.Context, w daterange.Window, primaryAgent string, limit int) ([]UserAgentMetrics, error) {
	b := s.db.Dialect().Binder()
	query := fmt.Sprintf(`
		SELECT
			COALESCE("userAgent", 'Unknown') AS user_agent,
			%s
		FROM "RequestLog"
		WHERE %s
			AND ("userAgent" IS NULL OR "userAgent" <> %s)
		GROUP BY COALESCE("userAgent", 'Unknown')
		ORDER BY total_requests DESC, user_agent ASC
		LIMIT %s
	`, metricsColumns(s.db.Dialect()), w.Predicate("").SQL(b), b.Bind(primaryAgent), b.Bind(limit))

	rows, err := s.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query other agents: %w", err)
	}
	defer rows.Close()

	out := []UserAgentMetrics{}
	for rows.Next() {
		var m UserAgentMetrics
		if err := scanMetrics(rows, &m, &m.UserAgent); err != nil {
			return nil, fmt.Errorf("failed to scan other agent: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate other agents: %w", err)
	}
	return out, nil
}

// UserAgentRoutes lists the (path, method) pairs called by userAgent, busiest
// first. "Unknown" matches requests without a user agent. An empty agent
// yields an empty list without touching the store.
func (s *Service) UserAgentRoutes(ctx context.Context, r daterange.Range, userAgent string, limit int) ([]UserAgentRoute, error) {
	if userAgent == "" {
		return []UserAgentRoute{}, nil
	}
	limit = orDefault(limit, DefaultRoutesLimit)
	w := s.window(r)
	out, err := cached(ctx, s, cacheKey("routes", w, strconv.Quote(userAgent), limit), func(ctx context.Context) ([]UserAgentRoute, error) {
		b := s.db.Dialect().Binder()
		query := fmt.Sprintf(`
			SELECT
				"path",
				"method",
				%s
			FROM "RequestLog"
			WHERE %s
				AND COALESCE("userAgent", 'Unknown') = %s
			GROUP BY "path", "method"
			ORDER BY total_requests DESC, "path" ASC, "method" ASC
			LIMIT %s
		`, metricsColumns(s.db.Dialect()), w.Predicate("").SQL(b), b.Bind(userAgent), b.Bind(limit))

		rows, err := s.db.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return nil, fmt.Errorf("failed to query user agent routes: %w", err)
		}
		defer rows.Close()

		out := []UserAgentRoute{}
		for rows.Next() {
			var m UserAgentMetrics
			var path, method string
			if err := scanMetrics(rows, &m, &path, &method); err != nil {
				return nil, fmt.Errorf("failed to scan user agent route: %w", err)
			}
			out = append(out, UserAgentRoute{
				UserAgent:       userAgent,
				Path:            path,
				Method:          method,
				TotalRequests:   m.TotalRequests,
				SuccessCount:    m.SuccessCount,
				ErrorCount:      m.ErrorCount,
				SuccessRate:     m.SuccessRate,
				ErrorRate:       m.ErrorRate,
				AvgResponseTime: m.AvgResponseTime,
			})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate user agent routes: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, queryFailed("UserAgentRoutes", MsgUserAgentRoutes, err)
	}
	return out, nil
}
