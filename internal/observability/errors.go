package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/baxromumarov/job-extractor/internal/httpx"
)

const (
	ErrorNetwork   = "network"
	ErrorParsing   = "parsing"
	ErrorSelector  = "selector"
	ErrorRateLimit = "rate_limit"
	ErrorRobots    = "robots"
	ErrorBrowser   = "browser"
	ErrorStore     = "store"
	ErrorUnknown   = "unknown"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		default:
			return ErrorNetwork
		}
	}
	if errors.Is(err, httpx.ErrBlockedByRobots) {
		return ErrorRobots
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorNetwork
	}
	return ErrorUnknown
}

// ClassifyPageError classifies a failure to read a page snapshot.
func ClassifyPageError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse failed") ||
		strings.Contains(msg, "invalid character") {
		return ErrorParsing
	}
	if strings.Contains(msg, "chrome") || strings.Contains(msg, "target") {
		return ErrorBrowser
	}
	return ErrorNetwork
}
