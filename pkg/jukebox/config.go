package jukebox

import (
	"os"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/fingerprint"
)

// Config carries the engine dependencies and tunables. Built from
// DefaultConfig plus functional options; zero values fall back to defaults.
type Config struct {
	DBPath  string
	TempDir string

	// Workers bounds the indexing pool and the per-window fingerprinting
	// fan-out during analysis.
	Workers int

	// SegmentSeconds / OverlapSeconds shape the mix scanner window.
	SegmentSeconds int
	OverlapSeconds int

	Fingerprint fingerprint.Config
	Match       fingerprint.MatchConfig

	Logger  Logger
	Storage Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

func WithTempDir(dir string) Option {
	return func(c *Config) { c.TempDir = dir }
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		if rate > 0 {
			c.Fingerprint.SampleRate = rate
		}
	}
}

func WithSegment(segmentSeconds, overlapSeconds int) Option {
	return func(c *Config) {
		if segmentSeconds > 0 && overlapSeconds >= 0 && overlapSeconds < segmentSeconds {
			c.SegmentSeconds = segmentSeconds
			c.OverlapSeconds = overlapSeconds
		}
	}
}

func WithFingerprintConfig(cfg fingerprint.Config) Option {
	return func(c *Config) { c.Fingerprint = cfg }
}

func WithMatchConfig(cfg fingerprint.MatchConfig) Option {
	return func(c *Config) { c.Match = cfg }
}

func WithLogger(log Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func WithStorage(storage Storage) Option {
	return func(c *Config) { c.Storage = storage }
}

func DefaultConfig() *Config {
	return &Config{
		DBPath:         "jukebox.sqlite3",
		TempDir:        os.TempDir(),
		Workers:        8,
		SegmentSeconds: 30,
		OverlapSeconds: 15,
		Fingerprint:    fingerprint.DefaultConfig(),
		Match:          fingerprint.DefaultMatchConfig(),
	}
}
