package chunker

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultChunkSize is the target maximum chunk length in length units
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the overlap between consecutive chunks
	DefaultChunkOverlap = 200

	// DefaultDeadline bounds the paragraph loop of the incremental splitter
	DefaultDeadline = 30 * time.Second

	// DefaultBatchSize is the number of characters sub-split at once
	DefaultBatchSize = 10000

	paragraphSeparator = "\n\n"

	// fallbackInputLimit caps the text handed to fixed-width slicing
	fallbackInputLimit = 1_000_000

	// lastResortLimit caps the single chunk returned when every strategy failed
	lastResortLimit = 10_000
)

// Method selects a splitting strategy
type Method string

const (
	// MethodIncremental selects the bounded batch splitter
	MethodIncremental Method = "incremental"
	// MethodRecursive selects the recursive separator splitter
	MethodRecursive Method = "recursive"
)

// Configuration errors
var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("chunk overlap must not be negative")
	ErrOverlapTooLarge  = errors.New("chunk overlap must be smaller than chunk size")
	ErrInvalidBatchSize = errors.New("batch size must not be negative")
	ErrInvalidDeadline  = errors.New("deadline must not be negative")
	ErrUnknownMethod    = errors.New("unknown chunk method")
)

// Config holds the parameters shared by all splitters.
// Zero values for Length, Separators, BatchSize and Clock select the defaults.
type Config struct {
	// ChunkSize is the target maximum chunk length, measured by Length
	ChunkSize int

	// ChunkOverlap is a piece count when assembling separator pieces and a
	// character count when slicing by characters
	ChunkOverlap int

	Length     LengthFunc
	Separators []Separator

	// Deadline bounds the incremental paragraph loop; 0 disables it
	Deadline time.Duration

	// BatchSize is the number of characters the incremental splitter
	// accumulates before sub-splitting
	BatchSize int

	// Clock returns the current time; tests substitute a simulated clock
	Clock func() time.Time
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Length:       RuneLength,
		Separators:   DefaultSeparators(),
		Deadline:     DefaultDeadline,
		BatchSize:    DefaultBatchSize,
	}
}

// Validate checks the configuration for faults that would make splitting
// ill-defined. Faults are reported here so that Split never has to.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.ChunkSize)
	}

	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOverlap, c.ChunkOverlap)
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d, size %d", ErrOverlapTooLarge, c.ChunkOverlap, c.ChunkSize)
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.BatchSize)
	}

	if c.Deadline < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDeadline, c.Deadline)
	}

	if c.Separators != nil {
		if err := validateSeparators(c.Separators); err != nil {
			return err
		}
	}

	return nil
}

// withDefaults fills unset optional fields
func (c Config) withDefaults() Config {
	if c.Length == nil {
		c.Length = RuneLength
	}
	if c.Separators == nil {
		c.Separators = DefaultSeparators()
	} else {
		c.Separators = append([]Separator(nil), c.Separators...)
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// ParseMethod converts a configured chunk method name
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodIncremental, MethodRecursive:
		return Method(s), nil
	case "":
		return MethodIncremental, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}
