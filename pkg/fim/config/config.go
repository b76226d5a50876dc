// Package config loads the on-disk YAML configuration for fimd, along with
// its environment variable overrides.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/sentrylabs/fim/pkg/encoding"
)

// RootConfig describes one monitored root, as written in YAML.
type RootConfig struct {
	Path        string   `yaml:"path"`
	Mask        []string `yaml:"mask"`
	Restriction string   `yaml:"restriction"`
	RecurseLevel *int    `yaml:"recurse_level"`
	CrossDevice bool     `yaml:"cross_device"`
	PrefilterCmd string  `yaml:"prefilter_cmd"`
}

// IgnoreConfig describes the three families of exclusion rules.
type IgnoreConfig struct {
	Literal []string `yaml:"literal"`
	Glob    []string `yaml:"glob"`
	Regex   []string `yaml:"regex"`
}

// ScheduleConfig describes the periodic/calendar scan policy.
type ScheduleConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	ScanOnStart     bool   `yaml:"scan_on_start"`
	SkipNFS         bool   `yaml:"skip_nfs"`
	ScanTime        string `yaml:"scan_time"`
	ScanDay         string `yaml:"scan_day"`
}

// RootcheckConfig describes the rootkit-task cadence.
type RootcheckConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// SinkConfig describes the outbound transport addresses.
type SinkConfig struct {
	SyscheckAddress  string `yaml:"syscheck_address"`
	RootcheckAddress string `yaml:"rootcheck_address"`
}

// RealtimeConfig describes whether and how often realtime watching falls
// back to polling.
type RealtimeConfig struct {
	Enabled            bool   `yaml:"enabled"`
	PollIntervalSeconds uint32 `yaml:"poll_interval_seconds"`
}

// LogConfig describes the root logger's verbosity.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the full daemon configuration, decoded from YAML with strict
// field checking (pkg/encoding.LoadAndUnmarshalYAML).
type Config struct {
	Roots        []RootConfig    `yaml:"roots"`
	Ignore       IgnoreConfig    `yaml:"ignore"`
	PrefilterCmd string          `yaml:"prefilter_cmd"`
	Schedule     ScheduleConfig  `yaml:"schedule"`
	Rootcheck    RootcheckConfig `yaml:"rootcheck"`
	Sink         SinkConfig      `yaml:"sink"`
	Realtime     RealtimeConfig  `yaml:"realtime"`
	Log          LogConfig       `yaml:"log"`
}

// Load reads and decodes the configuration at path. If envPath is
// non-empty and exists, its KEY=VALUE entries are loaded into the process
// environment before decoding (variables that are already set keep their
// values). After decoding, FIM_SINK_SYSCHECK_ADDRESS,
// FIM_SINK_ROOTCHECK_ADDRESS and FIM_PREFILTER_CMD, when set, override the
// corresponding fields; no other placeholder expansion is applied to the
// YAML.
func Load(path string, envPath string) (*Config, error) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, errors.Wrap(err, "unable to load environment overrides")
			}
		}
	}

	var config Config
	if err := encoding.LoadAndUnmarshalYAML(path, &config); err != nil {
		return nil, errors.Wrap(err, "unable to load configuration")
	}

	if override := os.Getenv("FIM_SINK_SYSCHECK_ADDRESS"); override != "" {
		config.Sink.SyscheckAddress = override
	}
	if override := os.Getenv("FIM_SINK_ROOTCHECK_ADDRESS"); override != "" {
		config.Sink.RootcheckAddress = override
	}
	if override := os.Getenv("FIM_PREFILTER_CMD"); override != "" {
		config.PrefilterCmd = override
	}

	if len(config.Roots) == 0 {
		return nil, errors.New("configuration must define at least one root")
	}

	return &config, nil
}
