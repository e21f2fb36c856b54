package chunker

import (
	"fmt"
	"strings"
	"time"
)

// strategy is one rung of the degradation ladder
type strategy struct {
	name  string
	state State
	run   func(text string, start time.Time) []string
}

// Incremental splits large text paragraph batch by paragraph batch under a
// deadline. It never fails: a failing batch contributes no chunks, a failing
// pass degrades to fixed-width slicing, and non-empty input always yields at
// least one chunk.
type Incremental struct {
	cfg       Config
	recursive *Recursive
	observer  Observer
	ladder    []strategy
}

// NewIncremental validates cfg and returns a bounded batch splitter
func NewIncremental(cfg Config, opts ...Option) (*Incremental, error) {
	r, err := NewRecursive(cfg)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Incremental{
		cfg:       r.cfg,
		recursive: r,
		observer:  o.observer,
	}
	s.ladder = []strategy{
		{name: "batched", state: StateBatching, run: s.splitBatched},
		{name: "fixed-width", state: StateFallbackCharSlice, run: s.splitFixedWidth},
		{name: "last-resort", state: StateLastResortSingleChunk, run: s.lastResort},
	}

	return s, nil
}

// Split returns the ordered chunks of text
func (s *Incremental) Split(text string) []string {
	if text == "" {
		return nil
	}

	start := s.cfg.Clock()
	s.emit(Event{Kind: EventStart, State: StateStart})

	for i, st := range s.ladder {
		chunks, err := guard(func() []string { return st.run(text, start) })
		if err == nil {
			s.emit(Event{Kind: EventDone, State: StateChunksReturned, Chunks: len(chunks), Elapsed: s.elapsed(start)})
			return chunks
		}

		next := StateLastResortSingleChunk
		if i+1 < len(s.ladder) {
			next = s.ladder[i+1].state
		}
		s.emit(Event{Kind: EventFallback, State: next, Err: fmt.Errorf("%s strategy: %w", st.name, err)})
	}

	return s.lastResort(text, start)
}

// splitBatched is the primary strategy
func (s *Incremental) splitBatched(text string, start time.Time) []string {
	size := s.cfg.ChunkSize
	if s.cfg.Length(text) <= size {
		s.emit(Event{Kind: EventFastPath, State: StateFastPathDone, Chunks: 1})
		return []string{text}
	}

	paragraphs := strings.Split(text, paragraphSeparator)

	var chunks []string
	var batch []string
	batchLen := 0
	batchNo := 0

	flush := func(paragraph int) {
		batchNo++
		batchText := strings.Join(batch, paragraphSeparator)
		batch = batch[:0]
		batchLen = 0

		out, err := guard(func() []string { return s.recursive.Split(batchText) })
		if err != nil {
			s.emit(Event{Kind: EventBatchFailed, State: StateBatching, Paragraph: paragraph, Paragraphs: len(paragraphs), Batch: batchNo, Err: err})
			return
		}
		chunks = append(chunks, out...)
		s.emit(Event{Kind: EventBatchDone, State: StateBatching, Paragraph: paragraph, Paragraphs: len(paragraphs), Batch: batchNo, Chunks: len(out)})
	}

	last := -1
	for i, paragraph := range paragraphs {
		if s.cfg.Deadline > 0 {
			if elapsed := s.cfg.Clock().Sub(start); elapsed > s.cfg.Deadline {
				s.emit(Event{Kind: EventDeadline, State: StateDeadlineHit, Paragraph: i, Paragraphs: len(paragraphs), Chunks: len(chunks), Elapsed: elapsed})
				break
			}
		}

		if i > 0 && i%progressInterval == 0 {
			s.emit(Event{Kind: EventProgress, State: StateBatching, Paragraph: i, Paragraphs: len(paragraphs), Chunks: len(chunks)})
		}

		batch = append(batch, paragraph)
		batchLen += RuneLength(paragraph)
		last = i

		if batchLen >= s.cfg.BatchSize || i == len(paragraphs)-1 {
			flush(i)
		}
	}

	// Paragraphs admitted before the deadline are still chunked
	if len(batch) > 0 {
		flush(last)
	}

	if len(chunks) == 0 {
		return []string{truncateRunes(text, 2*size)}
	}

	return chunks
}

// splitFixedWidth slices the (capped) text into non-overlapping windows
func (s *Incremental) splitFixedWidth(text string, _ time.Time) []string {
	return SliceByLength(truncateRunes(text, fallbackInputLimit), s.cfg.ChunkSize, 0)
}

// lastResort returns the head of text as a single chunk
func (s *Incremental) lastResort(text string, _ time.Time) []string {
	return []string{truncateRunes(text, lastResortLimit)}
}

// emit delivers e to the observer. A panicking observer is ignored so it
// never changes the chunks returned.
func (s *Incremental) emit(e Event) {
	if s.observer == nil {
		return
	}
	defer func() { _ = recover() }()
	s.observer(e)
}

// elapsed reads the clock only when someone is listening, so a simulated
// clock sees exactly one read per deadline check.
func (s *Incremental) elapsed(start time.Time) time.Duration {
	if s.observer == nil {
		return 0
	}
	return s.cfg.Clock().Sub(start)
}

// guard runs fn, converting a panic into an error
func guard(fn func() []string) (chunks []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			if e, ok := r.(error); ok {
				err = fmt.Errorf("recovered: %w", e)
				return
			}
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	return fn(), nil
}
