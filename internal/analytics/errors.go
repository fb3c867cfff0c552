package analytics

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// Stable failure messages returned to API clients.
const (
	MsgOverview          = "Failed to fetch overview statistics"
	MsgTopEndpoints      = "Failed to fetch top endpoints"
	MsgSlowestEndpoints  = "Failed to fetch slowest endpoints"
	MsgErrorProne        = "Failed to fetch error-prone endpoints"
	MsgEndpointsAnalysis = "Failed to fetch endpoints analysis"
	MsgUserAgentAnalysis = "Failed to fetch user agent analysis"
	MsgErrorBreakdown    = "Failed to fetch error breakdown"
	MsgMethodStats       = "Failed to fetch method statistics"
	MsgUserAgentCompare  = "Failed to fetch user agent comparison"
	MsgOcrSummary        = "Failed to fetch OCR summary"
	MsgOcrUserAgentCosts = "Failed to fetch OCR user agent costs"
	MsgOcrPathCosts      = "Failed to fetch OCR path costs"
	MsgUserAgentRoutes   = "Failed to fetch user agent routes"
	MsgDashboard         = "Failed to fetch dashboard"
)

// QueryError is returned by every aggregation when the store fails.
// Error returns only the stable Message; the cause is kept in Err.
type QueryError struct {
	Op      string
	Message string
	Err     error
}

func (e *QueryError) Error() string { return e.Message }

func (e *QueryError) Unwrap() error { return e.Err }

// queryFailed logs err and wraps it. Errors already wrapped by a nested
// aggregation were logged there and are only wrapped again.
func queryFailed(op, message string, err error) error {
	var inner *QueryError
	if !errors.As(err, &inner) {
		log.WithError(err).WithField("op", op).Error(message)
	}
	return &QueryError{Op: op, Message: message, Err: err}
}
