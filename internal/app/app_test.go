package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GameForge/internal/event"
)

func TestSuggestionsSafeForConcurrentAccess(t *testing.T) {
	a := &App{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.rememberSuggestions([]string{"Add sound effects", "Add levels"})
		}()
		go func() {
			defer wg.Done()
			_ = a.currentSuggestions()
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"Add sound effects", "Add levels"}, a.currentSuggestions())
}

func TestRememberSuggestionsKeepsLastNonEmpty(t *testing.T) {
	a := &App{}
	a.rememberSuggestions([]string{"Add a timer"})
	// A finalized message without suggestions must not wipe the last set.
	a.rememberSuggestions(nil)
	assert.Equal(t, []string{"Add a timer"}, a.currentSuggestions())
}

func TestCurrentSuggestionsReturnsCopy(t *testing.T) {
	a := &App{}
	a.rememberSuggestions([]string{"Add a timer"})

	got := a.currentSuggestions()
	got[0] = "mutated"
	assert.Equal(t, []string{"Add a timer"}, a.currentSuggestions())
}

func TestCacheKeyFor(t *testing.T) {
	key := cacheKeyFor("conv-1", "make a maze game")
	require.Len(t, key, 64)
	assert.Equal(t, key, cacheKeyFor("conv-1", "make a maze game"))

	// Publishing deploys as a side effect and is never served from cache.
	assert.Empty(t, cacheKeyFor("conv-1", publishInstruction))
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "stream.events.status", metricName(event.Status{State: "generating"}))
	assert.Equal(t, "stream.events.publish_success", metricName(event.PublishSuccess{}))

	// Unrecognized categories share one bucket even when their wire name
	// collides with a known category.
	assert.Equal(t, "stream.events.unknown", metricName(event.Unknown{Category: "code"}))
	assert.Equal(t, "stream.events.unknown", metricName(event.Unknown{Category: "telemetry_blob"}))
}
