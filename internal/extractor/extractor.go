package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/baxromumarov/job-extractor/internal/clock"
	"github.com/baxromumarov/job-extractor/internal/observability"
	"github.com/baxromumarov/job-extractor/internal/urlutil"
)

// Extractor dispatches a page to its site adapter and polls the adapter's
// selector chains under that site's retry policy. It keeps no state between
// calls and is safe for concurrent use.
type Extractor struct {
	policies map[AdapterKind]RetryPolicy
	clock    clock.Clock
	logger   *slog.Logger
}

type Option func(*Extractor)

func WithPolicy(kind AdapterKind, policy RetryPolicy) Option {
	return func(e *Extractor) { e.policies[kind] = policy }
}

func WithClock(c clock.Clock) Option {
	return func(e *Extractor) { e.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		policies: DefaultPolicies(),
		clock:    clock.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Policy(kind AdapterKind) RetryPolicy {
	return e.policies[kind]
}

// Extract reads p and returns whatever posting fields could be found. The
// error is non-nil only when p cannot be read at all, and then wraps
// ErrPageUnavailable.
func (e *Extractor) Extract(ctx context.Context, p Page) (ParsedJobPosting, error) {
	start := time.Now()

	rawURL, err := p.URL(ctx)
	if err != nil {
		observability.IncError(observability.ClassifyPageError(err), "extractor")
		return ParsedJobPosting{}, fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}
	kind := AdapterFor(urlutil.Hostname(rawURL))

	first, err := p.Snapshot(ctx)
	if err != nil {
		observability.IncError(observability.ClassifyPageError(err), "extractor")
		return ParsedJobPosting{}, fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}

	res := pollChains(ctx, p, kind.Chains().list(), e.policies[kind], e.clock, first)
	posting := kind.assemble(res.texts, res.last)

	observability.IncExtraction(kind.String())
	observability.ObserveExtractDuration(time.Since(start).Seconds())
	if posting.JobTitle == "" {
		observability.IncEmptyField("jobTitle")
	}
	if posting.CompanyName == "" {
		observability.IncEmptyField("companyName")
	}
	if posting.JobDescription == "" {
		observability.IncEmptyField("jobDescription")
	}

	e.logger.Debug("extracted posting",
		"url", rawURL,
		"adapter", kind.String(),
		"title", posting.JobTitle != "",
		"company", posting.CompanyName != "",
		"description", posting.JobDescription != "",
	)
	return posting, nil
}
