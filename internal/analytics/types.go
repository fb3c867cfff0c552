package analytics

// OverviewStats are the headline figures of the dashboard.
type OverviewStats struct {
	TotalRequests   int64   `json:"totalRequests"`
	ActiveTokens    int64   `json:"activeTokens"`
	SuccessRate     float64 `json:"successRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	TotalData       int64   `json:"totalData"`

	OcrTotalRequests        int64   `json:"ocrTotalRequests"`
	OcrInputTokens          int64   `json:"ocrInputTokens"`
	OcrOutputTokens         int64   `json:"ocrOutputTokens"`
	OcrTotalTokens          int64   `json:"ocrTotalTokens"`
	OcrCostUsd              float64 `json:"ocrCostUsd"`
	OcrCostThb              float64 `json:"ocrCostThb"`
	OcrExchangeRate         float64 `json:"ocrExchangeRate"`
	OcrInputRatePerMillion  float64 `json:"ocrInputRatePerMillion"`
	OcrOutputRatePerMillion float64 `json:"ocrOutputRatePerMillion"`
}

// EndpointData is a per-path request count with its mean latency.
type EndpointData struct {
	Path    string  `json:"path"`
	Count   int64   `json:"count"`
	AvgTime float64 `json:"avgTime"`
}

// ErrorProneEndpoint is a per-path error rate.
type ErrorProneEndpoint struct {
	Path          string  `json:"path"`
	TotalRequests int64   `json:"totalRequests"`
	ErrorCount    int64   `json:"errorCount"`
	ErrorRate     float64 `json:"errorRate"`
}

// EndpointsAnalysis groups the three endpoint rankings.
type EndpointsAnalysis struct {
	Top        []EndpointData       `json:"top"`
	Slowest    []EndpointData       `json:"slowest"`
	ErrorProne []ErrorProneEndpoint `json:"errorProne"`
}

// UserAgentData counts requests per (user agent, method, status code).
type UserAgentData struct {
	UserAgent    string `json:"userAgent"`
	Method       string `json:"method"`
	StatusCode   int    `json:"statusCode"`
	RequestCount int64  `json:"requestCount"`
}

// ErrorData is one status code's share of all error responses.
type ErrorData struct {
	StatusCode int     `json:"statusCode"`
	ErrorCount int64   `json:"errorCount"`
	Percentage float64 `json:"percentage"`
}

// MethodData is a per-HTTP-method request count with its mean latency.
type MethodData struct {
	Method  string  `json:"method"`
	Count   int64   `json:"count"`
	AvgTime float64 `json:"avgTime"`
}

// UserAgentMetrics aggregates the outcome of one agent's requests.
type UserAgentMetrics struct {
	UserAgent       string  `json:"userAgent"`
	TotalRequests   int64   `json:"totalRequests"`
	SuccessCount    int64   `json:"successCount"`
	ErrorCount      int64   `json:"errorCount"`
	SuccessRate     float64 `json:"successRate"`
	ErrorRate       float64 `json:"errorRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
}

// ComparisonSummary splits traffic between the primary agent and the rest.
type ComparisonSummary struct {
	PrimaryPercentage float64 `json:"primaryPercentage"`
	OthersPercentage  float64 `json:"othersPercentage"`
}

// UserAgentComparison compares one agent against every other agent.
type UserAgentComparison struct {
	Primary UserAgentMetrics   `json:"primary"`
	Others  []UserAgentMetrics `json:"others"`
	Summary ComparisonSummary  `json:"summary"`
}

// OcrCostSummary totals OCR token usage and its estimated cost.
type OcrCostSummary struct {
	TotalResponses         int64   `json:"totalResponses"`
	TotalInputTokens       int64   `json:"totalInputTokens"`
	TotalOutputTokens      int64   `json:"totalOutputTokens"`
	TotalTokens            int64   `json:"totalTokens"`
	TotalUsd               float64 `json:"totalUsd"`
	TotalThb               float64 `json:"totalThb"`
	ExchangeRate           float64 `json:"exchangeRate"`
	ExchangeRateLastUpdate string  `json:"exchangeRateLastUpdate,omitempty"`
	ExchangeRateSource     string  `json:"exchangeRateSource,omitempty"`
	InputRatePerMillion    float64 `json:"inputRatePerMillion"`
	OutputRatePerMillion   float64 `json:"outputRatePerMillion"`
}

// OcrUserAgentCost is the measured OCR usage of one user agent.
type OcrUserAgentCost struct {
	UserAgent    string  `json:"userAgent"`
	RequestCount int64   `json:"requestCount"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	UsdCost      float64 `json:"usdCost"`
	ThbCost      float64 `json:"thbCost"`
}

// OcrPathCost is the estimated OCR usage of one (path, method, agent) group.
// Token figures are allocated from the window average, not measured.
type OcrPathCost struct {
	Path         string  `json:"path"`
	Method       string  `json:"method"`
	UserAgent    string  `json:"userAgent"`
	RequestCount int64   `json:"requestCount"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	UsdCost      float64 `json:"usdCost"`
	ThbCost      float64 `json:"thbCost"`
}

// UserAgentRoute is one route called by a given user agent.
type UserAgentRoute struct {
	UserAgent       string  `json:"userAgent"`
	Path            string  `json:"path"`
	Method          string  `json:"method"`
	TotalRequests   int64   `json:"totalRequests"`
	SuccessCount    int64   `json:"successCount"`
	ErrorCount      int64   `json:"errorCount"`
	SuccessRate     float64 `json:"successRate"`
	ErrorRate       float64 `json:"errorRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
}

// Dashboard is everything the main dashboard page renders in one payload.
type Dashboard struct {
	Overview   OverviewStats     `json:"overview"`
	Endpoints  EndpointsAnalysis `json:"endpoints"`
	UserAgents []UserAgentData   `json:"userAgents"`
	Errors     []ErrorData       `json:"errors"`
	Methods    []MethodData      `json:"methods"`
	Ocr        OcrCostSummary    `json:"ocr"`
}

// Health reports whether the event store is reachable.
type Health struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}
