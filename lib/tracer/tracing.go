// Package tracer collects lightweight spans and exports them in the
// Chrome trace event format (chrome://tracing, perfetto).
//
// Two entry points: Open attaches a span to a context and is used on
// paths that already carry one (repositories, HTTP, services); Trace is
// a defer-friendly helper for bot handlers, which have no context of
// their own.
package tracer

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type TSpan struct {
	mu       sync.Mutex
	children []*TSpan
	start    time.Time
	stop     time.Time
	name     string
	tid      int64
}

type SpanOption func(*TSpan)

func Named(name string) SpanOption {
	return func(span *TSpan) {
		span.name = name
	}
}

func withNewTid(span *TSpan) {
	span.tid = uutid.Add(1)
}

type spanContextKeyType int

var spanContextKey spanContextKeyType

var uutid atomic.Int64

// Open starts a span as a child of the one carried by ctx, or as a new
// root when there is none. The caller must Close the returned span.
func Open(ctx context.Context, options ...SpanOption) (context.Context, *TSpan) {
	parentSpan, _ := ctx.Value(spanContextKey).(*TSpan)
	newSpan := &TSpan{start: time.Now(), name: opname()}
	if parentSpan != nil {
		newSpan.tid = parentSpan.tid
		parentSpan.addChild(newSpan)
	} else {
		options = append(options, withNewTid)
	}
	for _, opt := range options {
		opt(newSpan)
	}
	return context.WithValue(ctx, spanContextKey, newSpan), newSpan
}

func WithSpan(ctx context.Context, span *TSpan) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

func FromContext(ctx context.Context) *TSpan {
	parentSpan, _ := ctx.Value(spanContextKey).(*TSpan)
	return parentSpan
}

// Background keeps the span chain while detaching from ctx deadlines
// and cancellation.
func Background(ctx context.Context) context.Context {
	return WithSpan(context.Background(), FromContext(ctx))
}

func (s *TSpan) addChild(child *TSpan) {
	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()
}

func (s *TSpan) Close() {
	s.stop = time.Now()
}

var processRoot = &TSpan{start: time.Now(), name: "process"}

// Trace records a span under the process root. Intended for
// `defer tracer.Trace("name")()` in telebot handlers.
func Trace(opName string) func() {
	if opName == "" {
		opName = opname()
	}
	span := &TSpan{start: time.Now(), name: opName, tid: processRoot.tid}
	processRoot.addChild(span)
	return span.Close
}

// PrintTrace exports the process root tree, including spans created via
// Trace.
func PrintTrace() ([]byte, error) {
	return processRoot.PrintTrace()
}

func (s *TSpan) PrintTrace() ([]byte, error) {
	return json.MarshalIndent(s.chromeTraceEvents(), " ", " ")
}

type chromeTrace struct {
	TraceEvents chromeTraceEvents `json:"traceEvents"`
}

type chromeTraceEvents []chromeTraceEvent

type chromeTraceEvent struct {
	PID  int    `json:"pid"`
	TID  int    `json:"tid"`
	Ts   int64  `json:"ts"`  // microseconds since the root span started
	Dur  int64  `json:"dur"` // microseconds
	PH   string `json:"ph"`  // X marks a complete event
	Name string `json:"name"`
	Args any    `json:"args,omitempty"`
}

func (s *TSpan) chromeTraceEvents() chromeTrace {
	if s == nil {
		return chromeTrace{}
	}
	var queue []*TSpan
	startTS := s.start
	var chromeEvents chromeTraceEvents
	queue = append(queue, s)
	for len(queue) > 0 {
		span := queue[0]

		start := span.start
		finish := span.stop
		if finish.IsZero() {
			finish = time.Now()
		}

		chromeEvents = append(chromeEvents, chromeTraceEvent{
			PID:  1,
			TID:  int(span.tid),
			Ts:   start.Sub(startTS).Microseconds(),
			Dur:  finish.Sub(start).Microseconds(),
			PH:   "X",
			Name: span.name,
		})

		queue = queue[1:]
		span.mu.Lock()
		queue = append(queue, span.children...)
		span.mu.Unlock()
	}
	return chromeTrace{chromeEvents}
}

func opname() string {
	pc, _, line, ok := runtime.Caller(2)
	if ok {
		return fmt.Sprintf("%s:%d", runtime.FuncForPC(pc).Name(), line)
	}
	return ""
}
