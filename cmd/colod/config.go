package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/vmftkit/colo"
)

// config is colod's yaml-file shape. Durations are strings in
// time.ParseDuration syntax ("100ms", "1s").
type config struct {
	// Peer is the secondary's address the primary dials.
	Peer string `yaml:"peer"`
	// Listen is the address the secondary accepts the primary on.
	Listen string `yaml:"listen"`
	// CheckpointInterval paces cycles on the primary; empty or "0" means
	// checkpoint continuously.
	CheckpointInterval string `yaml:"checkpoint_interval"`
	// BufferCapacity is the staging buffer's base capacity in bytes.
	BufferCapacity int `yaml:"buffer_capacity"`
	// MaxStateSize bounds the state blob the secondary accepts, in bytes.
	MaxStateSize uint64 `yaml:"max_state_size"`
	// StateSize is the synthetic guest's serialized state size in bytes.
	StateSize int `yaml:"state_size"`
	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

func defaultConfig() config {
	return config{
		Listen:         ":9980",
		BufferCapacity: colo.DefaultBufferCapacity,
		MaxStateSize:   colo.DefaultMaxStateSize,
		StateSize:      1 << 20,
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "can't read config %s", path)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "can't parse config %s", path)
	}
	if _, err := cfg.checkpointInterval(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c config) checkpointInterval() (time.Duration, error) {
	if c.CheckpointInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CheckpointInterval)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid checkpoint_interval %q", c.CheckpointInterval)
	}
	return d, nil
}
