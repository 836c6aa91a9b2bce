package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncPagesFetchedCountsPerHost(t *testing.T) {
	before := Snapshot()

	IncPagesFetched("boards.example.test")
	IncPagesFetched("boards.example.test")
	IncPagesFetched("")

	after := Snapshot()
	assert.Equal(t, before.PagesFetched+3, after.PagesFetched)
	assert.Equal(t, before.PagesByHost["boards.example.test"]+2, after.PagesByHost["boards.example.test"])
	assert.Equal(t, before.PagesByHost["unknown"]+1, after.PagesByHost["unknown"])
}

func TestIncExtractionCountsPerSite(t *testing.T) {
	before := Snapshot()

	IncExtraction("linkedin")
	IncExtraction("")

	after := Snapshot()
	assert.Equal(t, before.Extractions+2, after.Extractions)
	assert.Equal(t, before.ExtractionsBySite["linkedin"]+1, after.ExtractionsBySite["linkedin"])
	assert.Equal(t, before.ExtractionsBySite["unknown"]+1, after.ExtractionsBySite["unknown"])
}
