// Package config loads tasklens settings from config.json, .env files and
// TASKLENS_* environment variables, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendRemote = "remote"

	DefaultViewKey      = "default"
	DefaultRedisChannel = "tasklens:events"
	DefaultTimeout      = 15 * time.Second
	DefaultSaveDelay    = 500 * time.Millisecond
	DefaultCacheTTL     = 10 * time.Minute
)

// Duration is a time.Duration that reads and writes as "1m30s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var ms int64
		if err2 := json.Unmarshal(b, &ms); err2 != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// Backend is "sqlite" (local file) or "remote" (HTTP collaborator).
	Backend string `json:"backend,omitempty"`
	// Dir holds the SQLite database. Empty means the nearest .tasklens directory.
	Dir    string `json:"dir,omitempty"`
	APIURL string `json:"apiUrl,omitempty"`

	// RedisAddr enables the shared event bus and the preference cache.
	RedisAddr     string   `json:"redisAddr,omitempty"`
	RedisChannel  string   `json:"redisChannel,omitempty"`
	PrefsCacheTTL Duration `json:"prefsCacheTtl,omitempty"`
	// PrefsDir keeps view preferences as JSON files instead of in the backend.
	PrefsDir string `json:"prefsDir,omitempty"`

	ViewKey   string   `json:"viewKey,omitempty"`
	Timeout   Duration `json:"timeout,omitempty"`
	SaveDelay Duration `json:"saveDelay,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`
	LogFile  string `json:"logFile,omitempty"`
}

func Default() *Config {
	return &Config{
		Backend:       BackendSQLite,
		RedisChannel:  DefaultRedisChannel,
		PrefsCacheTTL: Duration(DefaultCacheTTL),
		ViewKey:       DefaultViewKey,
		Timeout:       Duration(DefaultTimeout),
		SaveDelay:     Duration(DefaultSaveDelay),
		LogLevel:      "info",
	}
}

func ConfigDir() (string, error) {
	// Keeps tests away from ~/.tasklens.
	if v := strings.TrimSpace(os.Getenv("TASKLENS_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tasklens"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads config.json from the config dir, then .env in the working directory and
// the config dir, then the process environment.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	dotenv, err := readDotenv(".env", filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	lookup := func(k string) (string, bool) {
		if v, ok := os.LookupEnv(k); ok {
			return v, true
		}
		v, ok := dotenv[k]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ReadFile reads one config file over the defaults. A missing file yields the defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// readDotenv merges the given .env files; earlier files win. Missing files are skipped.
func readDotenv(paths ...string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		m, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		for k, v := range m {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out, nil
}

// ApplyEnv overrides fields from TASKLENS_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}
	str("TASKLENS_BACKEND", &c.Backend)
	str("TASKLENS_DIR", &c.Dir)
	str("TASKLENS_API_URL", &c.APIURL)
	str("TASKLENS_REDIS_ADDR", &c.RedisAddr)
	str("TASKLENS_REDIS_CHANNEL", &c.RedisChannel)
	str("TASKLENS_PREFS_DIR", &c.PrefsDir)
	str("TASKLENS_VIEW_KEY", &c.ViewKey)
	str("TASKLENS_LOG_LEVEL", &c.LogLevel)
	str("TASKLENS_LOG_FILE", &c.LogFile)
	if err := dur("TASKLENS_TIMEOUT", &c.Timeout); err != nil {
		return err
	}
	if err := dur("TASKLENS_SAVE_DELAY", &c.SaveDelay); err != nil {
		return err
	}
	return dur("TASKLENS_PREFS_CACHE_TTL", &c.PrefsCacheTTL)
}

func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "", BackendSQLite:
		c.Backend = BackendSQLite
	case BackendRemote:
		if strings.TrimSpace(c.APIURL) == "" {
			return errors.New("remote backend needs an api url (apiUrl or TASKLENS_API_URL)")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendRemote)
	}
	if c.Timeout < 0 || c.SaveDelay < 0 {
		return errors.New("timeout and saveDelay must not be negative")
	}
	if strings.TrimSpace(c.ViewKey) == "" {
		c.ViewKey = DefaultViewKey
	}
	return nil
}

// Save writes c to the config path, keeping the previous file as config.json.bak.
func Save(c *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}
