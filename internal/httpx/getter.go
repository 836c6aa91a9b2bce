package httpx

import (
	"context"
	"fmt"
	"time"
)

// Getter fetches one page body.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
}

type HostLimit struct {
	Every time.Duration `yaml:"every"`
	Burst int           `yaml:"burst"`
}

// NewGetter builds the fetcher named by kind ("colly" or "polite") with
// per-host limits applied.
func NewGetter(kind, userAgent string, timeout time.Duration, limits map[string]HostLimit) (Getter, error) {
	switch kind {
	case "", "colly":
		f := NewCollyFetcher(userAgent, timeout)
		for host, l := range limits {
			f.SetHostLimit(host, l.Every, l.Burst)
		}
		return f, nil
	case "polite":
		c := NewPoliteClient(userAgent, timeout)
		for host, l := range limits {
			c.SetHostLimit(host, l.Every, l.Burst)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown fetcher %q", kind)
}
