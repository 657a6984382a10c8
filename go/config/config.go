// Package config defines the environment-driven configuration of the
// CogniBlock note pipeline service.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration object of the service.
// Fields are bound both to command-line flags and to environment
// variables via go-flags struct tags.
type Config struct {
	Service struct {
		Port         int    `long:"port" env:"PORT" default:"8080" description:"Port of the HTTP API server"`
		DatabasePath string `long:"database-path" env:"DATABASE_PATH" default:"cogniblock.db" description:"Path of the SQLite content database"`
	} `group:"Service" namespace:"service"`

	Tasks struct {
		MaxConcurrent  int `long:"max-concurrent" env:"MAX_CONCURRENT_TASKS" default:"10" description:"Maximum number of concurrently running tasks"`
		TimeoutS       int `long:"timeout" env:"TASK_TIMEOUT_S" default:"300" description:"Per-task deadline in seconds, measured from task start"`
		QueueWaitS     int `long:"queue-wait" env:"QUEUE_WAIT_TIMEOUT_S" default:"30" description:"Seconds a pending task may wait for a run slot"`
		RetentionTTLS  int `long:"retention-ttl" env:"TASK_RETENTION_TTL_S" default:"3600" description:"Seconds a terminal task is retained before sweeping"`
		SweepIntervalS int `long:"sweep-interval" env:"TASK_SWEEP_INTERVAL_S" default:"60" description:"Seconds between sweeps of terminal tasks"`
	} `group:"Tasks" namespace:"tasks"`

	Notes struct {
		MinThreshold        int     `long:"min-threshold" env:"MIN_NOTES_THRESHOLD" default:"3" description:"Note count below which the single-summary path is taken"`
		ConfidenceThreshold float64 `long:"confidence-threshold" env:"CONFIDENCE_THRESHOLD" default:"0.60" description:"Mean similarity below which a correction pass runs"`
		MaxContentLength    int     `long:"max-content-length" env:"MAX_CONTENT_LENGTH" default:"2000" description:"Maximum characters of a single note"`
		FanoutLimit         int     `long:"fanout-limit" env:"PER_TASK_FANOUT_LIMIT" default:"4" description:"Concurrent per-note summaries within one task"`
		MaxNotes            int     `long:"max-notes" env:"MAX_NOTES_PER_WORKFLOW" default:"64" description:"Maximum notes accepted by one multi-note workflow"`
		MaxImageBytes       int64   `long:"max-image-bytes" env:"MAX_IMAGE_BYTES" default:"10485760" description:"Maximum size of an uploaded note image"`
	} `group:"Notes" namespace:"notes"`

	Tags struct {
		MaxPerContent int `long:"max-per-content" env:"MAX_TAGS_PER_CONTENT" default:"5" description:"Maximum tags associated with one content"`
		MaxExisting   int `long:"max-existing" env:"MAX_EXISTING_TAGS" default:"200" description:"Maximum existing tag names offered to the tag model"`
	} `group:"Tags" namespace:"tags"`

	Cache struct {
		MaxEntries int `long:"max-entries" env:"CACHE_MAX_ENTRIES" default:"10000" description:"Maximum entries of the content-hash cache"`
		TTLS       int `long:"ttl" env:"CACHE_TTL_S" default:"86400" description:"Seconds before a cache entry expires"`
	} `group:"Cache" namespace:"cache"`

	Model struct {
		EndpointURL     string `long:"endpoint-url" env:"MODEL_ENDPOINT_URL" default:"https://api.ppinfra.com/v3/openai" description:"Base URL of the OpenAI-compatible model endpoint"`
		APIKey          string `long:"api-key" env:"MODEL_API_KEY" description:"API key of the model endpoint"`
		OCRModel        string `long:"ocr-model" env:"OCR_MODEL_NAME" default:"qwen/qwen2.5-vl-72b-instruct" description:"Model used for OCR"`
		CorrectionModel string `long:"correction-model" env:"CORRECTION_MODEL_NAME" default:"deepseek/deepseek-v3" description:"Model used for text correction"`
		SummaryModel    string `long:"summary-model" env:"SUMMARY_MODEL_NAME" default:"moonshotai/kimi-k2-instruct" description:"Model used for summarization"`
		TagModel        string `long:"tag-model" env:"TAG_MODEL_NAME" default:"moonshotai/kimi-k2-instruct" description:"Model used for tag generation"`
		MaxRetries      int    `long:"max-retries" env:"AI_MAX_RETRIES" default:"3" description:"Retries of transient model call failures"`
		RetryBaseS      int    `long:"retry-base" env:"AI_RETRY_BASE_S" default:"1" description:"Base seconds of the exponential retry backoff"`
	} `group:"Model" namespace:"model"`

	Log LogConfig `group:"Logging" namespace:"log"`
}

// Validate returns an error for configurations which can never work.
func (c *Config) Validate() error {
	if c.Tasks.MaxConcurrent < 1 {
		return fmt.Errorf("tasks.max-concurrent must be >= 1 (got %d)", c.Tasks.MaxConcurrent)
	}
	if c.Notes.MinThreshold < 1 {
		return fmt.Errorf("notes.min-threshold must be >= 1 (got %d)", c.Notes.MinThreshold)
	}
	if c.Notes.ConfidenceThreshold < 0 || c.Notes.ConfidenceThreshold > 1 {
		return fmt.Errorf("notes.confidence-threshold must be in [0,1] (got %f)", c.Notes.ConfidenceThreshold)
	}
	if c.Notes.FanoutLimit < 1 {
		return fmt.Errorf("notes.fanout-limit must be >= 1 (got %d)", c.Notes.FanoutLimit)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max-entries must be >= 1 (got %d)", c.Cache.MaxEntries)
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("model.max-retries must be >= 0 (got %d)", c.Model.MaxRetries)
	}
	return nil
}

// TaskTimeout is the per-task deadline measured from task start.
func (c *Config) TaskTimeout() time.Duration { return time.Duration(c.Tasks.TimeoutS) * time.Second }

// QueueWaitTimeout bounds how long a pending task waits for a run slot.
func (c *Config) QueueWaitTimeout() time.Duration {
	return time.Duration(c.Tasks.QueueWaitS) * time.Second
}

// RetentionTTL is how long terminal tasks are retained before sweeping.
func (c *Config) RetentionTTL() time.Duration {
	return time.Duration(c.Tasks.RetentionTTLS) * time.Second
}

// SweepInterval is the period of the background task sweeper.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Tasks.SweepIntervalS) * time.Second
}

// CacheTTL is the age bound of content-hash cache entries.
func (c *Config) CacheTTL() time.Duration { return time.Duration(c.Cache.TTLS) * time.Second }

// RetryBase is the base delay of the model-call retry backoff.
func (c *Config) RetryBase() time.Duration { return time.Duration(c.Model.RetryBaseS) * time.Second }
