package observability

import (
	"sync"
	"sync/atomic"
)

type StatsSnapshot struct {
	PagesFetched      uint64            `json:"pages_fetched"`
	Extractions       uint64            `json:"extractions"`
	Reextractions     uint64            `json:"reextractions"`
	SnapshotAttempts  uint64            `json:"snapshot_attempts"`
	SelectorFailures  uint64            `json:"selector_failures"`
	EventsPublished   uint64            `json:"events_published"`
	EventsDropped     uint64            `json:"events_dropped"`
	ErrorsTotal       uint64            `json:"errors_total"`
	ExtractSecondsAvg float64           `json:"extract_seconds_avg"`
	PagesByHost       map[string]uint64 `json:"pages_by_host,omitempty"`
	ExtractionsBySite map[string]uint64 `json:"extractions_by_site,omitempty"`
	EmptyFields       map[string]uint64 `json:"empty_fields,omitempty"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
}

var (
	pagesFetched     uint64
	extractions      uint64
	reextractions    uint64
	snapshotAttempts uint64
	selectorFailures uint64
	eventsPublished  uint64
	eventsDropped    uint64
	errorsTotal      uint64

	extractCount uint64
	extractNanos uint64

	statsMu           sync.Mutex
	pagesByHost       = map[string]uint64{}
	extractionsBySite = map[string]uint64{}
	emptyFields       = map[string]uint64{}
	errorsByType      = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
)

func IncPagesFetched(host string) {
	if host == "" {
		host = "unknown"
	}
	atomic.AddUint64(&pagesFetched, 1)
	statsMu.Lock()
	pagesByHost[host]++
	statsMu.Unlock()
}

func IncExtraction(site string) {
	if site == "" {
		site = "unknown"
	}
	atomic.AddUint64(&extractions, 1)
	statsMu.Lock()
	extractionsBySite[site]++
	statsMu.Unlock()
}

func IncReextraction() {
	atomic.AddUint64(&reextractions, 1)
}

func IncSnapshotAttempt() {
	atomic.AddUint64(&snapshotAttempts, 1)
}

func IncSelectorFailure() {
	atomic.AddUint64(&selectorFailures, 1)
}

// IncEmptyField counts a field that stayed empty after every attempt.
func IncEmptyField(field string) {
	statsMu.Lock()
	emptyFields[field]++
	statsMu.Unlock()
}

func IncEventPublished() {
	atomic.AddUint64(&eventsPublished, 1)
}

func IncEventDropped() {
	atomic.AddUint64(&eventsDropped, 1)
}

func ObserveExtractDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&extractCount, 1)
	atomic.AddUint64(&extractNanos, uint64(seconds*1e9))
}

func IncError(errType, component string) {
	if errType == "" {
		errType = "unknown"
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[component]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	hostCopy := copyMap(pagesByHost)
	siteCopy := copyMap(extractionsBySite)
	emptyCopy := copyMap(emptyFields)
	errorsTypeCopy := copyMap(errorsByType)
	errorsComponentCopy := copyMap(errorsByComponent)
	statsMu.Unlock()

	count := atomic.LoadUint64(&extractCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&extractNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		PagesFetched:      atomic.LoadUint64(&pagesFetched),
		Extractions:       atomic.LoadUint64(&extractions),
		Reextractions:     atomic.LoadUint64(&reextractions),
		SnapshotAttempts:  atomic.LoadUint64(&snapshotAttempts),
		SelectorFailures:  atomic.LoadUint64(&selectorFailures),
		EventsPublished:   atomic.LoadUint64(&eventsPublished),
		EventsDropped:     atomic.LoadUint64(&eventsDropped),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		ExtractSecondsAvg: avg,
		PagesByHost:       hostCopy,
		ExtractionsBySite: siteCopy,
		EmptyFields:       emptyCopy,
		ErrorsByType:      errorsTypeCopy,
		ErrorsByComponent: errorsComponentCopy,
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
