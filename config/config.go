// Package config holds the run configuration of a maze simulation, the policy
// tokens, and the error types that abort a run.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults of a maze run.
const (
	DefaultRoomsFile   = "rooms.txt"
	DefaultMaxAgents   = 5
	DefaultMaxStations = 8
	DefaultTimeUnit    = time.Second
	DefaultLogLevel    = "info"
	DefaultMonitorPort = 0
)

// Environment variables that override the defaults.
const (
	EnvRoomsFile   = "RATMAZE_ROOMS"
	EnvTimeUnit    = "RATMAZE_TIME_UNIT"
	EnvLogLevel    = "RATMAZE_LOG_LEVEL"
	EnvMaxAgents   = "RATMAZE_MAX_AGENTS"
	EnvMaxStations = "RATMAZE_MAX_ROOMS"
)

// Config is everything a run needs besides the station layout itself.
type Config struct {
	Agents      int
	Policy      Policy
	RoomsFile   string
	MaxAgents   int
	MaxStations int
	TimeUnit    time.Duration
	LogLevel    string

	MonitorOn   bool
	MonitorPort int
	OpenBrowser bool
}

// Default returns a Config populated with the defaults. Agents and Policy are
// left unset.
func Default() Config {
	return Config{
		RoomsFile:   DefaultRoomsFile,
		MaxAgents:   DefaultMaxAgents,
		MaxStations: DefaultMaxStations,
		TimeUnit:    DefaultTimeUnit,
		LogLevel:    DefaultLogLevel,
		MonitorPort: DefaultMonitorPort,
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are not an error; variables that are already set
// win over the file.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}

		return &ConfigError{Field: "env", Reason: "cannot load " + f, Err: err}
	}

	return nil
}

// ApplyEnv overrides the fields of c that have a matching environment
// variable.
func (c Config) ApplyEnv() (Config, error) {
	if v, ok := lookup(EnvRoomsFile); ok {
		c.RoomsFile = v
	}

	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}

	if v, ok := lookup(EnvTimeUnit); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, &ConfigError{Field: EnvTimeUnit, Reason: "bad duration", Err: err}
		}

		c.TimeUnit = d
	}

	if v, ok := lookup(EnvMaxAgents); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, &ConfigError{Field: EnvMaxAgents, Reason: "bad integer", Err: err}
		}

		c.MaxAgents = n
	}

	if v, ok := lookup(EnvMaxStations); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, &ConfigError{Field: EnvMaxStations, Reason: "bad integer", Err: err}
		}

		c.MaxStations = n
	}

	return c, nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}

	v = strings.TrimSpace(v)

	return v, v != ""
}

// ParseAgentCount parses the agent-count argument.
func ParseAgentCount(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, &ConfigError{Field: "agents", Reason: "not an integer", Err: err}
	}

	return n, nil
}

// ValidateAgents checks an agent count against the maximum.
func ValidateAgents(agents, maxAgents int) error {
	if agents < 0 {
		return NewConfigError("agents", "must not be negative")
	}

	if agents > maxAgents {
		return NewConfigError("agents",
			"maximum rats allowed: "+strconv.Itoa(maxAgents))
	}

	return nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if c.MaxAgents < 0 {
		return NewConfigError("max-agents", "must not be negative")
	}

	if c.MaxStations < 1 {
		return NewConfigError("max-rooms", "must be at least 1")
	}

	if err := ValidateAgents(c.Agents, c.MaxAgents); err != nil {
		return err
	}

	if c.Policy < PolicyOrdered || c.Policy > PolicyNonBlocking {
		return NewConfigError("policy", "not set")
	}

	if c.TimeUnit <= 0 {
		return NewConfigError("time-unit", "must be positive")
	}

	if c.RoomsFile == "" {
		return NewConfigError("rooms", "no station configuration file given")
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		return NewConfigError("monitor-port", "out of range")
	}

	return nil
}
