// Package config resolves runtime settings.
//
// Precedence, lowest first: schema defaults, the optional CUE config file,
// .env files, the process environment (STORY_ prefix). The CLI applies its
// flags on top of the result.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "STORY_"

// Config is the resolved configuration.
type Config struct {
	APIURL         string
	DBPath         string
	ProbeInterval  time.Duration
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	PruneSynced    bool
	Offline        bool
	LogLevel       string
	Trace          bool
}

// fileConfig mirrors #Config in schema.cue.
type fileConfig struct {
	APIURL         string `json:"api_url"`
	DBPath         string `json:"db_path"`
	ProbeInterval  string `json:"probe_interval"`
	ProbeTimeout   string `json:"probe_timeout"`
	RequestTimeout string `json:"request_timeout"`
	PruneSynced    bool   `json:"prune_synced"`
	Offline        bool   `json:"offline"`
	LogLevel       string `json:"log_level"`
	Trace          bool   `json:"trace"`
}

// envConfig holds overrides. Nil means "not set".
type envConfig struct {
	APIURL         *string        `env:"API_URL"`
	DBPath         *string        `env:"DB_PATH"`
	ProbeInterval  *time.Duration `env:"PROBE_INTERVAL"`
	ProbeTimeout   *time.Duration `env:"PROBE_TIMEOUT"`
	RequestTimeout *time.Duration `env:"REQUEST_TIMEOUT"`
	PruneSynced    *bool          `env:"PRUNE_SYNCED"`
	Offline        *bool          `env:"OFFLINE"`
	LogLevel       *string        `env:"LOG_LEVEL"`
	Trace          *bool          `env:"TRACE"`
}

// LoadOptions says where to look.
type LoadOptions struct {
	// File is a CUE config file. Empty means schema defaults only.
	File string

	// DotEnv lists .env files to read. Missing files are skipped; process
	// environment wins over their values.
	DotEnv []string

	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// Load resolves the configuration.
func Load(opts LoadOptions) (Config, error) {
	fc, err := loadFile(opts.File)
	if err != nil {
		return Config{}, err
	}

	cfg, err := fromFile(fc)
	if err != nil {
		return Config{}, err
	}

	environ, err := environment(opts)
	if err != nil {
		return Config{}, err
	}

	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyEnv(ec)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	return cfg, nil
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := Load(LoadOptions{Environ: map[string]string{}})
	if err != nil {
		// The embedded schema is fixed; failing here is a build defect.
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Validate checks values that may have come from the environment or flags.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("config: api url %q must start with http:// or https://", c.APIURL)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("config: probe interval must be positive, got %s", c.ProbeInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("config: probe timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request timeout must be positive, got %s", c.RequestTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// DefaultDBPath is the database location when none is configured.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "stories.db"
	}
	return filepath.Join(dir, "storysync", "stories.db")
}

// loadFile unifies the optional file with the schema and decodes it.
func loadFile(path string) (fileConfig, error) {
	cctx := cuecontext.New()

	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fileConfig{}, fmt.Errorf("config: schema: %w", err)
	}
	value := schema.LookupPath(cue.ParsePath("#Config"))

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fileConfig{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		file := cctx.CompileBytes(data, cue.Filename(path))
		if err := file.Err(); err != nil {
			return fileConfig{}, fmt.Errorf("config: parse %s: %s", path, cueerrors.Details(err, nil))
		}
		value = value.Unify(file)
	}

	if err := value.Validate(); err != nil {
		return fileConfig{}, fmt.Errorf("config: invalid %s: %s", describe(path), cueerrors.Details(err, nil))
	}

	var fc fileConfig
	if err := value.Decode(&fc); err != nil {
		return fileConfig{}, fmt.Errorf("config: decode %s: %s", describe(path), cueerrors.Details(err, nil))
	}
	return fc, nil
}

func describe(path string) string {
	if path == "" {
		return "defaults"
	}
	return path
}

func fromFile(fc fileConfig) (Config, error) {
	cfg := Config{
		APIURL:      fc.APIURL,
		DBPath:      fc.DBPath,
		PruneSynced: fc.PruneSynced,
		Offline:     fc.Offline,
		LogLevel:    fc.LogLevel,
		Trace:       fc.Trace,
	}

	var err error
	if cfg.ProbeInterval, err = time.ParseDuration(fc.ProbeInterval); err != nil {
		return Config{}, fmt.Errorf("config: probe_interval: %w", err)
	}
	if cfg.ProbeTimeout, err = time.ParseDuration(fc.ProbeTimeout); err != nil {
		return Config{}, fmt.Errorf("config: probe_timeout: %w", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(fc.RequestTimeout); err != nil {
		return Config{}, fmt.Errorf("config: request_timeout: %w", err)
	}
	return cfg, nil
}

// environment merges .env values under the real environment.
func environment(opts LoadOptions) (map[string]string, error) {
	merged := make(map[string]string)

	for _, f := range opts.DotEnv {
		vals, err := godotenv.Read(f)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("config: read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, seen := merged[k]; !seen {
				merged[k] = v
			}
		}
	}

	base := opts.Environ
	if base == nil {
		base = env.ToMap(os.Environ())
	}
	for k, v := range base {
		merged[k] = v
	}
	return merged, nil
}

func (c *Config) applyEnv(ec envConfig) {
	if ec.APIURL != nil {
		c.APIURL = *ec.APIURL
	}
	if ec.DBPath != nil {
		c.DBPath = *ec.DBPath
	}
	if ec.ProbeInterval != nil {
		c.ProbeInterval = *ec.ProbeInterval
	}
	if ec.ProbeTimeout != nil {
		c.ProbeTimeout = *ec.ProbeTimeout
	}
	if ec.RequestTimeout != nil {
		c.RequestTimeout = *ec.RequestTimeout
	}
	if ec.PruneSynced != nil {
		c.PruneSynced = *ec.PruneSynced
	}
	if ec.Offline != nil {
		c.Offline = *ec.Offline
	}
	if ec.LogLevel != nil {
		c.LogLevel = *ec.LogLevel
	}
	if ec.Trace != nil {
		c.Trace = *ec.Trace
	}
}
