package extractor

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-extractor/internal/clock"
	"github.com/baxromumarov/job-extractor/internal/observability"
)

// Retry polls p until chain yields text or policy.MaxAttempts snapshots have
// been examined. The wait between attempts goes through clk, so only the
// calling goroutine is suspended.
func Retry(ctx context.Context, p Page, chain SelectorChain, policy RetryPolicy, clk clock.Clock) (string, bool) {
	res := pollChains(ctx, p, []SelectorChain{chain}, policy, clk, nil)
	return res.texts[0], res.texts[0] != ""
}

type pollResult struct {
	texts []string
	// last is the most recent snapshot that was read successfully.
	last *goquery.Document
}

// pollChains evaluates every unresolved chain against one snapshot per
// attempt. A chain stops being evaluated as soon as it yields text. When
// first is non-nil it is used as the first attempt's snapshot.
func pollChains(ctx context.Context, p Page, chains []SelectorChain, policy RetryPolicy, clk clock.Clock, first *goquery.Document) pollResult {
	res := pollResult{texts: make([]string, len(chains))}
	pending := len(chains)

	attempts := policy.attempts()
	for attempt := 0; attempt < attempts && pending > 0; attempt++ {
		if attempt > 0 {
			if err := clk.Sleep(ctx, policy.Delay); err != nil {
				break
			}
		}

		doc := first
		if attempt > 0 || doc == nil {
			var err error
			doc, err = p.Snapshot(ctx)
			observability.IncSnapshotAttempt()
			if err != nil {
				slog.Debug("snapshot failed", "attempt", attempt+1, "error", err)
				continue
			}
		} else {
			observability.IncSnapshotAttempt()
		}
		res.last = doc

		for i, chain := range chains {
			if res.texts[i] != "" {
				continue
			}
			if text, ok := chain.Text(doc); ok {
				res.texts[i] = text
				pending--
			}
		}
	}
	return res
}
