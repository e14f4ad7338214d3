package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cuemby/snapmeta/pkg/log"
	"gopkg.in/yaml.v3"
)

// Default timer intervals, in microseconds, matching the engine's
// documented defaults: a 120ms reader-timer cycle and a 2s writer-timer
// cycle.
const (
	DefaultReaderTimerIntervalUS = 120_000
	DefaultWriterTimerIntervalUS = 2_000_000

	readerTimerFloorPct = 0.60
	writerTimerFloorPct = 0.40
)

// ClusterRole distinguishes a read-only replica from a read-write node;
// in cluster mode an RO node runs the reader timer and an RW node runs the
// writer timer. The registry does not reject mutating operations on an RO
// node.
type ClusterRole string

const (
	RoleReadWrite ClusterRole = "rw"
	RoleReadOnly  ClusterRole = "ro"
)

// StorageConfig points at the on-disk location the Store opens.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// GeneralConfig carries engine-wide settings outside any one subsystem.
type GeneralConfig struct {
	MetaURI string `yaml:"meta_uri"`
}

// ClusterConfig controls whether the reader/writer timers run at all and
// which role this node plays if they do.
type ClusterConfig struct {
	Enable bool        `yaml:"enable"`
	Role   ClusterRole `yaml:"role"`
}

// PolicyConfig selects the SnapshotPolicy a Holder runs, and its
// parameters.
type PolicyConfig struct {
	Kind    string `yaml:"kind"` // "active_only" or "retain_n"
	RetainN int    `yaml:"retain_n"`
}

// Config is the engine's full configuration, as loaded from YAML and then
// adjusted by environment overrides.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	General GeneralConfig `yaml:"general"`
	Cluster ClusterConfig `yaml:"cluster"`
	Policy  PolicyConfig  `yaml:"policy"`

	ReaderTimerIntervalUS int64 `yaml:"-"`
	WriterTimerIntervalUS int64 `yaml:"-"`
}

// Load reads and parses the YAML file at path, then applies the
// READER_TIMER_INTERVAL_US / WRITER_TIMER_INTERVAL_US environment
// overrides on top of it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{
		ReaderTimerIntervalUS: DefaultReaderTimerIntervalUS,
		WriterTimerIntervalUS: DefaultWriterTimerIntervalUS,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Policy.Kind == "" {
		cfg.Policy.Kind = "active_only"
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides reads READER_TIMER_INTERVAL_US and
// WRITER_TIMER_INTERVAL_US, clamping each up to its documented floor
// (60% of default for the reader timer, 40% for the writer timer) and
// warning when a clamp was applied.
func (c *Config) applyEnvOverrides() {
	if v, ok := intervalFromEnv("READER_TIMER_INTERVAL_US"); ok {
		c.ReaderTimerIntervalUS = clamp(v, int64(DefaultReaderTimerIntervalUS*readerTimerFloorPct), "READER_TIMER_INTERVAL_US")
	}
	if v, ok := intervalFromEnv("WRITER_TIMER_INTERVAL_US"); ok {
		c.WriterTimerIntervalUS = clamp(v, int64(DefaultWriterTimerIntervalUS*writerTimerFloorPct), "WRITER_TIMER_INTERVAL_US")
	}
}

func intervalFromEnv(name string) (int64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.WithComponent("config").Warn().Str("var", name).Str("value", raw).Msg("ignoring malformed timer interval override")
		return 0, false
	}
	return v, true
}

func clamp(v, floor int64, name string) int64 {
	if v < floor {
		log.WithComponent("config").Warn().
			Str("var", name).
			Int64("requested_us", v).
			Int64("floor_us", floor).
			Msg("timer interval below floor, clamped up")
		return floor
	}
	return v
}
