package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/job-extractor/internal/extractor"
)

func sampleEvent(title string) Event {
	return NewEvent("test", "https://example.com/job", "generic",
		extractor.ParsedJobPosting{JobTitle: title}, time.Unix(100, 0))
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker(4)
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	b.Publish(sampleEvent("one"))

	for _, ch := range []<-chan Event{a, c} {
		select {
		case ev := <-ch:
			assert.Equal(t, "one", ev.Posting.JobTitle)
			assert.NotEmpty(t, ev.ID)
		default:
			t.Fatal("expected event")
		}
	}
}

func TestBrokerPublishNeverBlocks(t *testing.T) {
	b := NewBroker(1)
	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(sampleEvent("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestBrokerPublishWithoutSubscribers(t *testing.T) {
	b := NewBroker(1)
	assert.NotPanics(t, func() { b.Publish(sampleEvent("nobody")) })
}

func TestBrokerCancel(t *testing.T) {
	b := NewBroker(1)
	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()

	assert.Equal(t, 0, b.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker(1)
	ch, cancel := b.Subscribe()
	b.Close()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	late, _ := b.Subscribe()
	_, open = <-late
	assert.False(t, open)
	assert.NotPanics(t, func() { b.Publish(sampleEvent("late")) })
}

func TestNewEventUniqueIDs(t *testing.T) {
	a := sampleEvent("a")
	b := sampleEvent("b")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.At.Location())
}
