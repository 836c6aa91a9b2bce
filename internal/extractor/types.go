package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrPageUnavailable means the page could not be read at all. It is the only
// failure Extract reports; a page without job content is not an error.
var ErrPageUnavailable = errors.New("page unavailable")

// ParsedJobPosting is the best-effort result of one extraction. Missing
// fields are empty strings, never absent.
type ParsedJobPosting struct {
	JobTitle       string `json:"jobTitle"`
	CompanyName    string `json:"companyName"`
	JobDescription string `json:"jobDescription"`
}

func (p ParsedJobPosting) IsEmpty() bool {
	return p.JobTitle == "" && p.CompanyName == "" && p.JobDescription == ""
}

// Page is a read-only view of a document that may still be rendering. Each
// Snapshot reflects the document at the time of the call.
type Page interface {
	URL(ctx context.Context) (string, error)
	Snapshot(ctx context.Context) (*goquery.Document, error)
}

// RetryPolicy bounds how often a selector chain is re-polled while content
// arrives after the initial render.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// DefaultPolicies returns the tuned per-site policies. LinkedIn renders its
// job pane client-side and needs the longest wait.
func DefaultPolicies() map[AdapterKind]RetryPolicy {
	return map[AdapterKind]RetryPolicy{
		LinkedInAdapter: {MaxAttempts: 5, Delay: time.Second},
		IndeedAdapter:   {MaxAttempts: 3, Delay: time.Second},
		GenericAdapter:  {MaxAttempts: 1},
	}
}
