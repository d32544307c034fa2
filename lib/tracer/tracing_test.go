package tracer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracing(t *testing.T) {
	ctx := context.Background()
	ctx, span := Open(ctx, Named("TestTracing"))
	defer span.Close()
	a1(ctx)
	trace, err := span.PrintTrace()
	require.NoError(t, err)
	t.Log(string(trace))

	events := span.chromeTraceEvents()
	require.Len(t, events.TraceEvents, 3)
	assert.Equal(t, "TestTracing", events.TraceEvents[0].Name)
	assert.Equal(t, "a1", events.TraceEvents[1].Name)
	assert.Equal(t, "a2", events.TraceEvents[2].Name)
}

func a1(ctx context.Context) {
	ctx, span := Open(ctx, Named("a1"))
	defer span.Close()
	a2(ctx)
}

func a2(ctx context.Context) {
	_, span := Open(ctx, Named("a2"))
	defer span.Close()
	time.Sleep(10 * time.Millisecond)
}

func TestTraceHelper(t *testing.T) {
	before := len(processRoot.chromeTraceEvents().TraceEvents)
	func() {
		defer Trace("helper-span")()
		time.Sleep(time.Millisecond)
	}()
	events := processRoot.chromeTraceEvents().TraceEvents
	require.Greater(t, len(events), before)
	assert.Equal(t, "helper-span", events[len(events)-1].Name)
}

func TestBackgroundKeepsSpan(t *testing.T) {
	ctx, span := Open(context.Background(), Named("root"))
	defer span.Close()
	detached := Background(ctx)
	assert.Same(t, span, FromContext(detached))
}
