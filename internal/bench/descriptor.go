// Package bench implements BenchDescriptor parsing and the Bench runtime
// that composes instruments from it: a Bench owns one Transport+Driver
// pair per alias for the lifetime of a process.
package bench

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	pterrors "pytestlab/internal/errors"
)

// BackendType selects a Transport variant.
type BackendType string

const (
	BackendVISA    BackendType = "visa"
	BackendSim     BackendType = "sim"
	BackendRecord  BackendType = "record"
	BackendReplay  BackendType = "replay"
)

// BackendSettings is the {type, timeout_ms} pair that can be set globally
// or per-instrument.
type BackendSettings struct {
	Type      BackendType `yaml:"type"`
	TimeoutMs int         `yaml:"timeout_ms"`
}

// QuantityBound is one {max, min} pair in a bench descriptor's
// safety_limits block.
type QuantityBound struct {
	Max *float64 `yaml:"max"`
	Min *float64 `yaml:"min"`
}

// ChannelLimits holds the quantity bounds for one channel.
type ChannelLimits map[string]QuantityBound

// SafetyLimits is the bench-level overlay: per-channel quantity bounds.
type SafetyLimits struct {
	Channels map[int]ChannelLimits `yaml:"channels"`
}

// InstrumentEntry is one `instruments.<alias>` block.
type InstrumentEntry struct {
	Profile       string        `yaml:"profile"`
	Address       string        `yaml:"address"`
	Simulate      *bool         `yaml:"simulate"`
	Backend       *BackendSettings `yaml:"backend"`
	SafetyLimits  *SafetyLimits `yaml:"safety_limits"`
}

// ExperimentMeta is the optional experiment metadata block.
type ExperimentMeta struct {
	Title        string `yaml:"title"`
	Operator     string `yaml:"operator"`
	DatabasePath string `yaml:"database_path"`
}

// Descriptor is the parsed bench YAML.
type Descriptor struct {
	BenchName       string                     `yaml:"bench_name"`
	Simulate        bool                       `yaml:"simulate"`
	BackendDefaults BackendSettings            `yaml:"backend_defaults"`
	Instruments     map[string]InstrumentEntry `yaml:"instruments"`
	Experiment      *ExperimentMeta            `yaml:"experiment"`
}

// LoadDescriptor reads and minimally validates a bench YAML file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pterrors.NewConfigError(fmt.Sprintf("read bench descriptor %s", path), err)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, pterrors.NewConfigError("parse bench descriptor", err)
	}
	if d.BenchName == "" {
		return nil, pterrors.NewConfigError("bench descriptor", fmt.Errorf("bench_name is required"))
	}
	if len(d.Instruments) == 0 {
		return nil, pterrors.NewConfigError("bench descriptor", fmt.Errorf("at least one instrument is required"))
	}
	return &d, nil
}
