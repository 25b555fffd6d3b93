package driven

import "github.com/treeline-labs/confsync-cli/internal/core/domain"

// ConfigStore provides access to run configuration drawn from the
// config file and the overriding environment. Implementations handle
// parsing and type conversion; precedence over flags is applied by the
// command layer.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer configuration value.
	// Returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetFloat retrieves a numeric configuration value as a float.
	// Returns 0 if key doesn't exist or isn't numeric.
	GetFloat(key string) float64

	// GetBool retrieves a boolean configuration value.
	// Returns false if key doesn't exist or isn't a boolean.
	GetBool(key string) bool

	// GetStringOr retrieves a string value, falling back when the key
	// is absent or not a string.
	GetStringOr(key, fallback string) string

	// GetIntOr retrieves an integer value, falling back when the key is
	// absent or not an integer.
	GetIntOr(key string, fallback int) int

	// GetBoolOr retrieves a boolean value, falling back when the key is
	// absent or not a boolean.
	GetBoolOr(key string, fallback bool) bool

	// GetStringMap retrieves all string values under a key prefix.
	// Keys are returned with the prefix stripped.
	GetStringMap(prefix string) map[string]string

	// Config assembles the run configuration from the stored values and
	// the CONFSYNC_* environment overrides. Defaults are not applied.
	Config() (domain.Config, error)

	// Found reports whether the backing file existed when loaded.
	Found() bool

	// Path returns the configuration file path.
	Path() string
}
