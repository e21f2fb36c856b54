package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/pdfrag-mcp/internal/chunker"
)

// Environment variable names
const (
	EnvDBPath = "PDFRAG_DB_PATH"

	EnvChunkSize     = "PDFRAG_CHUNK_SIZE"
	EnvChunkOverlap  = "PDFRAG_CHUNK_OVERLAP"
	EnvChunkMethod   = "PDFRAG_CHUNK_METHOD"
	EnvMaxChunkTime  = "PDFRAG_MAX_CHUNK_TIME"
	EnvBatchSize     = "PDFRAG_BATCH_SIZE"
	EnvSeparators    = "PDFRAG_SEPARATORS"
	EnvLengthMeasure = "PDFRAG_LENGTH_MEASURE"

	EnvMaxPages          = "PDFRAG_MAX_PAGES"
	EnvPageBatchSize     = "PDFRAG_PAGE_BATCH_SIZE"
	EnvMaxChunksPerBatch = "PDFRAG_MAX_CHUNKS_PER_BATCH"
	EnvIngestWorkers     = "PDFRAG_INGEST_WORKERS"
	EnvDownloadTimeout   = "PDFRAG_DOWNLOAD_TIMEOUT"
	EnvMaxDownloadSize   = "PDFRAG_MAX_DOWNLOAD_SIZE"

	EnvSearchLimit = "PDFRAG_SEARCH_LIMIT"

	EnvLLMProvider    = "PDFRAG_LLM_PROVIDER"
	EnvLLMModel       = "PDFRAG_LLM_MODEL"
	EnvLLMTemperature = "PDFRAG_LLM_TEMPERATURE"
	EnvLLMMaxTokens   = "PDFRAG_LLM_MAX_TOKENS"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvAnthropicKey   = "ANTHROPIC_API_KEY"

	EnvLogLevel = "PDFRAG_LOG_LEVEL"
	EnvLogJSON  = "PDFRAG_LOG_JSON"
)

const (
	defaultOpenAIModel    = "gpt-4"
	defaultAnthropicModel = "claude-sonnet-4-5"
)

// Length measures accepted by PDFRAG_LENGTH_MEASURE
const (
	LengthChars  = "chars"
	LengthTokens = "tokens"
)

// Configuration errors
var (
	ErrInvalidValue    = errors.New("invalid configuration value")
	ErrInvalidProvider = errors.New("unknown LLM provider")
)

// Chunking configures the text splitter
type Chunking struct {
	ChunkSize     int
	ChunkOverlap  int
	Method        string
	MaxChunkTime  time.Duration
	BatchSize     int
	Separators    []string // "" means character slicing
	LengthMeasure string
}

// PDF configures extraction and download
type PDF struct {
	MaxPages        int // 0 means unlimited
	PageBatchSize   int
	DownloadTimeout time.Duration
	MaxDownloadSize int64
}

// Ingest configures the ingestion pipeline
type Ingest struct {
	MaxChunksPerBatch int
	Workers           int
}

// Search configures retrieval
type Search struct {
	Limit int
}

// LLM configures answer generation
type LLM struct {
	Provider    string // openai, anthropic or static
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
}

// Log configures the process logger
type Log struct {
	Level string
	JSON  bool
}

// Settings is the complete server configuration
type Settings struct {
	DBPath   string
	Chunking Chunking
	PDF      PDF
	Ingest   Ingest
	Search   Search
	LLM      LLM
	Log      Log
}

// Default returns the built-in settings
func Default() *Settings {
	return &Settings{
		DBPath: defaultDBPath(),
		Chunking: Chunking{
			ChunkSize:     chunker.DefaultChunkSize,
			ChunkOverlap:  chunker.DefaultChunkOverlap,
			Method:        string(chunker.MethodIncremental),
			MaxChunkTime:  chunker.DefaultDeadline,
			BatchSize:     chunker.DefaultBatchSize,
			Separators:    []string{"\n\n", "\n", ". ", ", ", " ", ""},
			LengthMeasure: LengthChars,
		},
		PDF: PDF{
			MaxPages:        100,
			PageBatchSize:   10,
			DownloadTimeout: 60 * time.Second,
			MaxDownloadSize: 100 * 1024 * 1024,
		},
		Ingest: Ingest{
			MaxChunksPerBatch: 50,
			Workers:           4,
		},
		Search: Search{
			Limit: 10,
		},
		LLM: LLM{
			Provider:    "openai",
			Model:       defaultOpenAIModel,
			Temperature: 0,
			MaxTokens:   1000,
		},
		Log: Log{
			Level: "info",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pdfrag.db"
	}
	return filepath.Join(home, ".pdfrag", "pdfrag.db")
}

// Load reads envFile (if it exists) and the process environment. Process
// environment variables take precedence over the file.
func Load(envFile string) (*Settings, error) {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		if vars != nil {
			fileVars = vars
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	})
}

// FromLookup builds settings from defaults overridden by lookup
func FromLookup(lookup func(string) (string, bool)) (*Settings, error) {
	s := Default()
	r := reader{lookup: lookup}

	r.str(EnvDBPath, &s.DBPath)

	r.int(EnvChunkSize, &s.Chunking.ChunkSize)
	r.int(EnvChunkOverlap, &s.Chunking.ChunkOverlap)
	r.str(EnvChunkMethod, &s.Chunking.Method)
	r.duration(EnvMaxChunkTime, &s.Chunking.MaxChunkTime)
	r.int(EnvBatchSize, &s.Chunking.BatchSize)
	r.strings(EnvSeparators, &s.Chunking.Separators)
	r.str(EnvLengthMeasure, &s.Chunking.LengthMeasure)

	r.int(EnvMaxPages, &s.PDF.MaxPages)
	r.int(EnvPageBatchSize, &s.PDF.PageBatchSize)
	r.duration(EnvDownloadTimeout, &s.PDF.DownloadTimeout)
	r.int64(EnvMaxDownloadSize, &s.PDF.MaxDownloadSize)
	r.int(EnvMaxChunksPerBatch, &s.Ingest.MaxChunksPerBatch)
	r.int(EnvIngestWorkers, &s.Ingest.Workers)

	r.int(EnvSearchLimit, &s.Search.Limit)

	r.str(EnvLLMProvider, &s.LLM.Provider)
	if strings.EqualFold(s.LLM.Provider, "anthropic") && s.LLM.Model == defaultOpenAIModel {
		s.LLM.Model = defaultAnthropicModel
	}
	r.str(EnvLLMModel, &s.LLM.Model)
	r.float(EnvLLMTemperature, &s.LLM.Temperature)
	r.int(EnvLLMMaxTokens, &s.LLM.MaxTokens)

	switch strings.ToLower(s.LLM.Provider) {
	case "anthropic":
		r.str(EnvAnthropicKey, &s.LLM.APIKey)
	default:
		r.str(EnvOpenAIAPIKey, &s.LLM.APIKey)
	}

	r.str(EnvLogLevel, &s.Log.Level)
	r.bool(EnvLogJSON, &s.Log.JSON)

	if r.err != nil {
		return nil, r.err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks settings that are not covered by component constructors
func (s *Settings) Validate() error {
	if _, _, err := s.ChunkerConfig(); err != nil {
		return err
	}

	if s.PDF.MaxPages < 0 {
		return fmt.Errorf("%w: max pages must not be negative", ErrInvalidValue)
	}
	if s.PDF.PageBatchSize <= 0 {
		return fmt.Errorf("%w: page batch size must be positive", ErrInvalidValue)
	}
	if s.Ingest.MaxChunksPerBatch <= 0 {
		return fmt.Errorf("%w: max chunks per batch must be positive", ErrInvalidValue)
	}
	if s.Ingest.Workers <= 0 {
		return fmt.Errorf("%w: ingest workers must be positive", ErrInvalidValue)
	}
	if s.Search.Limit <= 0 {
		return fmt.Errorf("%w: search limit must be positive", ErrInvalidValue)
	}

	switch strings.ToLower(s.LLM.Provider) {
	case "openai", "anthropic", "static":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidProvider, s.LLM.Provider)
	}
	if s.LLM.MaxTokens <= 0 {
		return fmt.Errorf("%w: LLM max tokens must be positive", ErrInvalidValue)
	}

	return nil
}

// ChunkerConfig converts the chunking settings into a validated splitter
// configuration. The length measure is left at its default; callers that
// select tokens install chunker.NewTokenLength themselves.
func (s *Settings) ChunkerConfig() (chunker.Config, chunker.Method, error) {
	method, err := chunker.ParseMethod(s.Chunking.Method)
	if err != nil {
		return chunker.Config{}, "", err
	}

	switch s.Chunking.LengthMeasure {
	case "", LengthChars, LengthTokens:
	default:
		return chunker.Config{}, "", fmt.Errorf("%w: length measure %q", ErrInvalidValue, s.Chunking.LengthMeasure)
	}

	cfg := chunker.Config{
		ChunkSize:    s.Chunking.ChunkSize,
		ChunkOverlap: s.Chunking.ChunkOverlap,
		Deadline:     s.Chunking.MaxChunkTime,
		BatchSize:    s.Chunking.BatchSize,
	}
	if s.Chunking.Separators != nil {
		cfg.Separators = chunker.ParseSeparators(s.Chunking.Separators)
	}

	if err := cfg.Validate(); err != nil {
		return chunker.Config{}, "", fmt.Errorf("invalid chunking settings: %w", err)
	}

	return cfg, method, nil
}

// reader parses environment values, keeping the first error
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) get(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *reader) fail(key, v string, err error) {
	r.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, key, v, err)
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) int(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *reader) int64(key string, dst *int64) {
	if v, ok := r.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *reader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *reader) bool(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}

// duration accepts Go durations ("45s") or plain seconds ("30", "2.5")
func (r *reader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = time.Duration(secs * float64(time.Second))
}

// strings reads a JSON array of strings
func (r *reader) strings(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = out
}
