package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/apiwatch/dashboard/internal/analytics"
	"github.com/apiwatch/dashboard/internal/daterange"
	"github.com/apiwatch/dashboard/internal/exchangerate"
)

type call struct {
	op          string
	r           daterange.Range
	agent       string
	groupOthers bool
	limit       int
}

type fakeService struct {
	last call
	err  error
}

func (f *fakeService) record(c call) { f.last = c }

func (f *fakeService) Health(context.Context) analytics.Health {
	f.record(call{op: "health"})
	return analytics.Health{Status: "ok", Database: "connected", Timestamp: "2024-05-01T09:00:00.000Z"}
}

func (f *fakeService) OverviewStats(_ context.Context, r daterange.Range) (*analytics.OverviewStats, error) {
	f.record(call{op: "overview", r: r})
	if f.err != nil {
		return nil, f.err
	}
	return &analytics.OverviewStats{TotalRequests: 42}, nil
}

func (f *fakeService) EndpointsAnalysis(_ context.Context, r daterange.Range) (*analytics.EndpointsAnalysis, error) {
	f.record(call{op: "endpoints", r: r})
	return &analytics.EndpointsAnalysis{}, f.err
}

func (f *fakeService) UserAgentAnalysis(_ context.Context, r daterange.Range, limit int) ([]analytics.UserAgentData, error) {
	f.record(call{op: "user-agents", r: r, limit: limit})
	return []analytics.UserAgentData{}, f.err
}

func (f *fakeService) UserAgentComparison(_ context.Context, r daterange.Range, primary string, groupOthers bool, limit int) (*analytics.UserAgentComparison, error) {
	f.record(call{op: "compare", r: r, agent: primary, groupOthers: groupOthers, limit: limit})
	return &analytics.UserAgentComparison{}, f.err
}

func (f *fakeService) UserAgentRoutes(_ context.Context, r daterange.Range, agent string, limit int) ([]analytics.UserAgentRoute, error) {
	f.record(call{op: "routes", r: r, agent: agent, limit: limit})
	return []analytics.UserAgentRoute{}, f.err
}

func (f *fakeService) ErrorBreakdown(_ context.Context, r daterange.Range) ([]analytics.ErrorData, error) {
	f.record(call{op: "errors", r: r})
	return []analytics.ErrorData{}, f.err
}

func (f *fakeService) MethodStats(_ context.Context, r daterange.Range) ([]analytics.MethodData, error) {
	f.record(call{op: "methods", r: r})
	return []analytics.MethodData{}, f.err
}

func (f *fakeService) OcrCostSummary(_ context.Context, r daterange.Range) (*analytics.OcrCostSummary, error) {
	f.record(call{op: "ocr-summary", r: r})
	return &analytics.OcrCostSummary{}, f.err
}

func (f *fakeService) OcrCostByUserAgent(_ context.Context, r daterange.Range, agent string, limit int) ([]analytics.OcrUserAgentCost, error) {
	f.record(call{op: "ocr-user-agents", r: r, agent: agent, limit: limit})
	return []analytics.OcrUserAgentCost{}, f.err
}

func (f *fakeService) OcrCostByPath(_ context.Context, r daterange.Range, agent string, limit int) ([]analytics.OcrPathCost, error) {
	f.record(call{op: "ocr-paths", r: r, agent: agent, limit: limit})
	return []analytics.OcrPathCost{}, f.err
}

func (f *fakeService) Dashboard(_ context.Context, r daterange.Range) (*analytics.Dashboard, error) {
	f.record(call{op: "dashboard", r: r})
	return &analytics.Dashboard{}, f.err
}

type fixedRate struct{}

func (fixedRate) Get(context.Context) exchangerate.Rate {
	return exchangerate.Rate{Rate: 36.5, Source: "test"}
}

func newTestEngine(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHandler(svc, fixedRate{}).Register(engine.Group("/api"))
	return engine
}

func serve(engine *gin.Engine, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandlerParsesParameters(t *testing.T) {
	testCases := []struct {
		name   string
		target string
		want   call
	}{
		{
			name:   "overview defaults",
			target: "/api/overview",
			want:   call{op: "overview"},
		},
		{
			name:   "overview days",
			target: "/api/overview?days=30",
			want:   call{op: "overview", r: daterange.Range{Days: 30}},
		},
		{
			name:   "overview absolute range",
			target: "/api/overview?startDate=2024-03-01&endDate=2024-03-07",
			want:   call{op: "overview", r: daterange.Range{StartDate: "2024-03-01", EndDate: "2024-03-07"}},
		},
		{
			name:   "non numeric days",
			target: "/api/errors?days=abc",
			want:   call{op: "errors"},
		},
		{
			name:   "user agents default limit",
			target: "/api/user-agents",
			want:   call{op: "user-agents", limit: analytics.DefaultUserAgentLimit},
		},
		{
			name:   "compare groups others by default",
			target: "/api/user-agents/compare?primaryAgent=scanner",
			want:   call{op: "compare", agent: "scanner", groupOthers: true, limit: analytics.DefaultCompareLimit},
		},
		{
			name:   "compare individual others",
			target: "/api/user-agents/compare?primaryAgent=scanner&groupOthers=false&limit=3",
			want:   call{op: "compare", agent: "scanner", groupOthers: false, limit: 3},
		},
		{
			name:   "compare groupOthers other value",
			target: "/api/user-agents/compare?primaryAgent=scanner&groupOthers=no",
			want:   call{op: "compare", agent: "scanner", groupOthers: true, limit: analytics.DefaultCompareLimit},
		},
		{
			name:   "routes invalid limit",
			target: "/api/user-agents/routes?userAgent=scanner&limit=-4",
			want:   call{op: "routes", agent: "scanner", limit: analytics.DefaultRoutesLimit},
		},
		{
			name:   "routes capped limit",
			target: "/api/user-agents/routes?userAgent=scanner&limit=999999",
			want:   call{op: "routes", agent: "scanner", limit: maxLimit},
		},
		{
			name:   "ocr user agents",
			target: "/api/ocr/user-agents",
			want:   call{op: "ocr-user-agents", limit: analytics.DefaultOcrLimit},
		},
		{
			name:   "ocr paths filter",
			target: "/api/ocr/paths?userAgent=all&limit=5",
			want:   call{op: "ocr-paths", agent: "all", limit: 5},
		},
		{
			name:   "dashboard",
			target: "/api/dashboard?days=14",
			want:   call{op: "dashboard", r: daterange.Range{Days: 14}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := serve(newTestEngine(svc), tc.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status code: got %d want %d body=%s", rec.Code, http.StatusOK, rec.Body.String())
			}
			if svc.last != tc.want {
				t.Fatalf("unexpected call: got %+v want %+v", svc.last, tc.want)
			}
			if !strings.HasPrefix(rec.Body.String(), `{"success":true,"data":`) {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

func TestHandlerRequiredParameters(t *testing.T) {
	testCases := []struct {
		target  string
		message string
	}{
		{"/api/user-agents/compare", "primaryAgent parameter is required"},
		{"/api/user-agents/routes", "userAgent parameter is required"},
	}
	for _, tc := range testCases {
		svc := &fakeService{}
		rec := serve(newTestEngine(svc), tc.target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: unexpected status code: got %d", tc.target, rec.Code)
		}
		want := `{"success":false,"error":"` + tc.message + `"}`
		if rec.Body.String() != want {
			t.Fatalf("%s: unexpected body: got %s want %s", tc.target, rec.Body.String(), want)
		}
		if svc.last.op != "" {
			t.Fatalf("%s: service should not be called, got %q", tc.target, svc.last.op)
		}
	}
}

func TestHandlerServiceError(t *testing.T) {
	svc := &fakeService{err: errors.New("Failed to fetch overview stats")}
	engine := newTestEngine(svc)

	for _, target := range []string{"/api/overview", "/api/methods", "/api/dashboard"} {
		rec := serve(engine, target)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: unexpected status code: got %d", target, rec.Code)
		}
		want := `{"success":false,"error":"Failed to fetch overview stats"}`
		if rec.Body.String() != want {
			t.Fatalf("%s: unexpected body: %s", target, rec.Body.String())
		}
	}
}

func TestHandlerHealthAndExchangeRate(t *testing.T) {
	engine := newTestEngine(&fakeService{})

	rec := serve(engine, "/api/health")
	want := `{"success":true,"data":{"status":"ok","database":"connected","timestamp":"2024-05-01T09:00:00.000Z"}}`
	if rec.Code != http.StatusOK || rec.Body.String() != want {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(engine, "/api/exchange-rate")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"rate":36.5`) || !strings.Contains(rec.Body.String(), `"source":"test"`) {
		t.Fatalf("unexpected exchange rate body: %s", rec.Body.String())
	}
}
