package chunker

import "time"

// State is a step of the incremental splitter's degradation ladder
type State string

const (
	StateStart                 State = "start"
	StateFastPathDone          State = "fast_path_done"
	StateBatching              State = "batching"
	StateDeadlineHit           State = "deadline_hit"
	StateInputExhausted        State = "input_exhausted"
	StateFallbackCharSlice     State = "fallback_char_slice"
	StateLastResortSingleChunk State = "last_resort_single_chunk"
	StateChunksReturned        State = "chunks_returned"
)

// EventKind identifies a progress event
type EventKind string

const (
	EventStart       EventKind = "start"
	EventFastPath    EventKind = "fast_path"
	EventProgress    EventKind = "progress"
	EventBatchDone   EventKind = "batch_done"
	EventBatchFailed EventKind = "batch_failed"
	EventDeadline    EventKind = "deadline"
	EventFallback    EventKind = "fallback"
	EventDone        EventKind = "done"
)

// progressInterval is how many paragraphs pass between progress events
const progressInterval = 100

// Event reports splitter progress to an Observer
type Event struct {
	Kind  EventKind
	State State

	Paragraph  int // Index of the paragraph being processed
	Paragraphs int // Total paragraphs in the input
	Batch      int // 1-based batch number
	Chunks     int // Chunks produced so far (or by the batch for batch events)

	Elapsed time.Duration
	Err     error
}

// Observer receives progress events. It is called synchronously from Split.
type Observer func(Event)

// Option configures a splitter
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver installs a progress observer
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}
