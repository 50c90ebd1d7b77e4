// Package config handles configuration loading from CLI flags, environment
// variables, and a TOML file, in the same priority order (CLI > env > TOML >
// defaults) and with the same verbosity-counting flag convention the
// broader example pack uses for Lua-embedding tools.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the settings needed to run the demo host/debugger pair and
// the visitor attached between them.
type Config struct {
	Host    HostConfig    `toml:"host"`
	Debug   DebugConfig   `toml:"debug"`
	Logging LoggingConfig `toml:"logging"`
}

// HostConfig describes the subject Lua program the visitor inspects.
type HostConfig struct {
	Script  string   `toml:"script"`  // path to the host's Lua entry point
	Fixture string   `toml:"fixture"` // optional fixture.yaml pre-populating globals
	Timeout Duration `toml:"timeout"` // 0 = never
}

// DebugConfig holds the path-evaluation depth setting. MaxPathDepth is
// loaded from TOML, env and flags, but nothing reads it: the evaluator's
// recursion bound is the hostlua.MaxPathDepth constant.
type DebugConfig struct {
	MaxPathDepth int `toml:"max_path_depth"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `toml:"level"`     // "debug", "info", "warn", "error"
	Verbosity int    `toml:"verbosity"` // 0=none, 1=calls, 2=steps, 3=values
}

// verbosityCounter implements flag.Value for counting -v flags.
type verbosityCounter int

func (v *verbosityCounter) String() string {
	return fmt.Sprintf("%d", *v)
}

func (v *verbosityCounter) Set(string) error {
	*v++
	return nil
}

func (v *verbosityCounter) IsBoolFlag() bool {
	return true
}

// expandVerbosityFlags preprocesses args to expand -vvv into -v -v -v.
// This allows both "-v -v -v" and "-vvv" styles to work.
func expandVerbosityFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' && arg[1] == 'v' {
			allV := true
			for _, c := range arg[1:] {
				if c != 'v' {
					allV = false
					break
				}
			}
			if allV {
				for range arg[1:] {
					result = append(result, "-v")
				}
				continue
			}
		}
		result = append(result, arg)
	}
	return result
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
func (d Duration) String() string          { return time.Duration(d).String() }

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Script: "",
		},
		Debug: DebugConfig{
			MaxPathDepth: 250,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Verbosity: 0,
		},
	}
}

// Load loads configuration from CLI flags, environment variables, and a TOML
// file. Priority: CLI flags > env vars > TOML file > defaults.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	args = expandVerbosityFlags(args)

	fs := flag.NewFlagSet("luadbg-repl", flag.ContinueOnError)
	script := fs.String("script", "", "Host Lua script to load")
	fixture := fs.String("fixture", "", "Fixture YAML pre-populating host globals")
	configPath := fs.String("config", "config.toml", "Path to a TOML config file")
	maxDepth := fs.Int("max-path-depth", 0, "Maximum ValuePath recursion depth")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	var verbosity verbosityCounter
	fs.Var(&verbosity, "v", "Verbosity level (use -v, -vv, or -vvv)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.loadTOML(*configPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()

	if *script != "" {
		cfg.Host.Script = *script
	}
	if *fixture != "" {
		cfg.Host.Fixture = *fixture
	}
	if *maxDepth != 0 {
		cfg.Debug.MaxPathDepth = *maxDepth
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if verbosity > 0 {
		cfg.Logging.Verbosity = int(verbosity)
	}

	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("LUADBG_SCRIPT"); v != "" {
		c.Host.Script = v
	}
	if v := os.Getenv("LUADBG_FIXTURE"); v != "" {
		c.Host.Fixture = v
	}
	if v := os.Getenv("LUADBG_MAX_PATH_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Debug.MaxPathDepth = n
		}
	}
	if v := os.Getenv("LUADBG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LUADBG_VERBOSITY"); v != "" {
		if verbosity, err := strconv.Atoi(v); err == nil {
			c.Logging.Verbosity = verbosity
		}
	}
}

// Verbosity returns the configured verbosity level.
func (c *Config) Verbosity() int {
	return c.Logging.Verbosity
}

// Log prints a message via the standard logger when level is at or below
// the configured verbosity, the same verbosity-gated Log(level, format,
// args...) method the rest of the pack threads off its config/runtime
// objects (e.g. LuaSession.Log, WebSocketEndpoint.Log).
func (c *Config) Log(level int, format string, args ...interface{}) {
	if level > c.Verbosity() {
		return
	}
	log.Printf(format, args...)
}
