package file

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
)

// DefaultPath is the configuration file looked for when no --config
// flag is given. It is resolved against the working directory, so a
// checkout carries its publishing setup with it.
const DefaultPath = "confsync.toml"

// Ensure Store implements the interface.
var _ driven.ConfigStore = (*Store)(nil)

// Store is a TOML-backed implementation of driven.ConfigStore. Nested
// tables are flattened into dot-notation keys on load, so "[render]
// toc = true" is read as "render.toc".
type Store struct {
	mu    sync.RWMutex
	path  string
	found bool
	data  map[string]any
}

// NewStore reads the TOML configuration at path. A missing file yields
// an empty store, so the environment and flags can carry a whole run;
// Found reports which case occurred.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	s := &Store{
		path: path,
		data: make(map[string]any),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads and flattens the backing file.
func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", s.path, err)
	}

	var loaded map[string]any
	if err := toml.Unmarshal(raw, &loaded); err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, s.path, err)
	}
	if loaded == nil {
		loaded = make(map[string]any)
	}

	s.mu.Lock()
	s.found = true
	s.data = flattenMap(loaded, "")
	s.mu.Unlock()
	return nil
}

// Get retrieves a configuration value by key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok
}

// GetString retrieves a string configuration value.
func (s *Store) GetString(key string) string {
	val, ok := s.Get(key)
	if !ok {
		return ""
	}

	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// GetInt retrieves an integer configuration value.
func (s *Store) GetInt(key string) int {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	// TOML integers are parsed as int64
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// GetFloat retrieves a numeric configuration value as a float. Whole
// numbers written without a decimal point arrive as integers.
func (s *Store) GetFloat(key string) float64 {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// GetBool retrieves a boolean configuration value.
func (s *Store) GetBool(key string) bool {
	val, ok := s.Get(key)
	if !ok {
		return false
	}

	b, ok := val.(bool)
	if !ok {
		return false
	}
	return b
}

// GetStringOr retrieves a string value, falling back when the key is
// absent or not a string.
func (s *Store) GetStringOr(key, fallback string) string {
	val, ok := s.Get(key)
	if !ok {
		return fallback
	}
	str, ok := val.(string)
	if !ok {
		return fallback
	}
	return str
}

// GetIntOr retrieves an integer value, falling back when the key is
// absent or not an integer.
func (s *Store) GetIntOr(key string, fallback int) int {
	val, ok := s.Get(key)
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// GetBoolOr retrieves a boolean value, falling back when the key is
// absent or not a boolean.
func (s *Store) GetBoolOr(key string, fallback bool) bool {
	val, ok := s.Get(key)
	if !ok {
		return fallback
	}
	b, ok := val.(bool)
	if !ok {
		return fallback
	}
	return b
}

// GetStringMap retrieves the string values under a table, keyed by the
// remainder after the prefix. Quoted TOML keys keep slashes and dots,
// so "[titles]" entries map directory paths unchanged.
func (s *Store) GetStringMap(prefix string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full := prefix + "."
	var result map[string]string
	for key, value := range s.data {
		str, ok := value.(string)
		if !ok || !strings.HasPrefix(key, full) {
			continue
		}
		if result == nil {
			result = make(map[string]string)
		}
		result[strings.TrimPrefix(key, full)] = str
	}
	return result
}

// Config assembles the run configuration. Environment variables win
// over the file; flags and defaults are the command layer's business.
func (s *Store) Config() (domain.Config, error) {
	cfg := domain.Config{
		BaseURL:           s.GetString("base_url"),
		SpaceKey:          s.GetString("space"),
		RootPageID:        s.GetString("root_page_id"),
		Token:             s.GetString("token"),
		DocRoot:           s.GetString("doc_root"),
		ManagedLabel:      s.GetString("managed_label"),
		TitleOverrides:    s.GetStringMap("titles"),
		Concurrency:       s.GetInt("concurrency"),
		MaxRetries:        s.GetInt("max_retries"),
		RequestsPerSecond: s.GetFloat("requests_per_second"),
		AdoptExisting:     s.GetBool("adopt_existing"),
	}

	if raw := s.GetString("request_timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return domain.Config{}, fmt.Errorf("%w: request_timeout %q: %v", domain.ErrInvalidConfig, raw, err)
		}
		cfg.RequestTimeout = d
	}

	if v := os.Getenv("CONFSYNC_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("CONFSYNC_SPACE"); v != "" {
		cfg.SpaceKey = v
	}
	if v := os.Getenv("CONFSYNC_ROOT_ID"); v != "" {
		cfg.RootPageID = v
	}
	if v := os.Getenv("CONFSYNC_TOKEN"); v != "" {
		cfg.Token = v
	}

	return cfg, nil
}

// Found reports whether the backing file existed when loaded.
func (s *Store) Found() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.found
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.path
}

// flattenMap converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}
