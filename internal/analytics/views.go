package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/apiwatch/dashboard/internal/daterange"
)

// Dashboard loads every panel of the main page concurrently. Any failing
// panel fails the whole view.
func (s *Service) Dashboard(ctx context.Context, r daterange.Range) (*Dashboard, error) {
	var (
		out       Dashboard
		overview  *OverviewStats
		endpoints *EndpointsAnalysis
		ocr       *OcrCostSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overview, err = s.OverviewStats(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		endpoints, err = s.EndpointsAnalysis(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		out.UserAgents, err = s.UserAgentAnalysis(gctx, r, DefaultUserAgentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		out.Errors, err = s.ErrorBreakdown(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		out.Methods, err = s.MethodStats(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		ocr, err = s.OcrCostSummary(gctx, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, queryFailed("Dashboard", MsgDashboard, err)
	}
	out.Overview = *overview
	out.Endpoints = *endpoints
	out.Ocr = *ocr
	return &out, nil
}
