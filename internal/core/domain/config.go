package domain

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	// DefaultConcurrency is the number of items published in parallel.
	DefaultConcurrency = 4

	// DefaultMaxRetries bounds retry attempts on transient remote failures.
	DefaultMaxRetries = 3

	// DefaultRequestTimeout bounds a single remote call.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultRequestsPerSecond throttles remote calls across workers.
	DefaultRequestsPerSecond = 10
)

// Config holds everything a publish run needs to know. It is assembled
// by the configuration adapter from file, environment and flags and
// handed to the services read-only.
type Config struct {
	// BaseURL is the remote API base, e.g. "https://wiki.example.com/rest/api".
	// Its context path (if any) is preserved when building page links.
	BaseURL string

	// SpaceKey is the remote space the managed tree lives in.
	SpaceKey string

	// RootPageID is the page all managed content is parented under.
	RootPageID string

	// Token is the bearer token for remote authentication.
	Token string

	// DocRoot is the local directory holding the Markdown tree.
	DocRoot string

	// ManagedLabel is the visible label marking managed pages.
	// Sanitised before use; empty means DefaultManagedLabel.
	ManagedLabel string

	// TitleOverrides maps directory paths (tree-relative) to display
	// titles, replacing the humanised directory name.
	TitleOverrides map[string]string

	// Concurrency is the number of items published in parallel.
	Concurrency int

	// MaxRetries bounds retry attempts on transient remote failures.
	MaxRetries int

	// RequestTimeout bounds a single remote call.
	RequestTimeout time.Duration

	// RequestsPerSecond throttles remote calls across workers.
	// Negative disables throttling.
	RequestsPerSecond float64

	// AdoptExisting allows a create that collides on title to adopt the
	// existing page under the root instead of renaming around it.
	AdoptExisting bool

	// DryRun renders and plans but performs no remote writes.
	DryRun bool
}

// Label returns the sanitised managed label, falling back to the
// default when unset or when sanitisation leaves nothing.
func (c *Config) Label() string {
	label := SanitizeLabel(c.ManagedLabel)
	if label == "" {
		return DefaultManagedLabel
	}
	return label
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	case c.SpaceKey == "":
		return fmt.Errorf("%w: space key is required", ErrInvalidConfig)
	case c.RootPageID == "":
		return fmt.Errorf("%w: root page ID is required", ErrInvalidConfig)
	case c.DocRoot == "":
		return fmt.Errorf("%w: doc root is required", ErrInvalidConfig)
	}
	return nil
}

// WithDefaults returns a copy with zero-valued tunables replaced by the
// package defaults.
func (c Config) WithDefaults() Config {
	if c.ManagedLabel == "" {
		c.ManagedLabel = DefaultManagedLabel
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	return c
}
