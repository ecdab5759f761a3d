// Package profile parses and validates the YAML instrument profile into a
// typed ProfileSpec: read bytes, yaml.Unmarshal, return a typed struct
// wrapped in a package error on failure.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	pterrors "pytestlab/internal/errors"
)

// DeviceType enumerates the supported instrument kinds.
type DeviceType string

const (
	DeviceOscilloscope DeviceType = "oscilloscope"
	DevicePSU          DeviceType = "psu"
	DeviceDMM          DeviceType = "dmm"
	DeviceAWG          DeviceType = "awg"
	DeviceLoad         DeviceType = "load"
	DeviceSA           DeviceType = "sa"
	DeviceVNA          DeviceType = "vna"
	DevicePowerMeter   DeviceType = "power_meter"
)

func validDeviceType(dt DeviceType) bool {
	switch dt {
	case DeviceOscilloscope, DevicePSU, DeviceDMM, DeviceAWG, DeviceLoad, DeviceSA, DeviceVNA, DevicePowerMeter:
		return true
	default:
		return false
	}
}

// ChannelSpec describes one channel entry.
type ChannelSpec struct {
	Index        int      `yaml:"index"`
	Role         string   `yaml:"role"`
	Capabilities []string `yaml:"capabilities"`
}

// AccuracySpec is one row of the accuracy table.
type AccuracySpec struct {
	PercentReading float64 `yaml:"percent_reading"`
	OffsetValue    float64 `yaml:"offset_value"`
	Unit           string  `yaml:"unit"`
}

// SafetyBound is a single max/min pair for one quantity.
type SafetyBound struct {
	Max *float64 `yaml:"max"`
	Min *float64 `yaml:"min"`
}

// SafetySchema is the per-channel skeleton of limit-able quantities; the
// bench supplies the actual numbers as an overlay.
type SafetySchema struct {
	Channels map[int]map[string]SafetyBound `yaml:"channels"`
}

// SimRule is one simulation rule. Response and ResponseExpr are mutually
// exclusive: Response is returned to the caller byte-for-byte, ResponseExpr
// is evaluated through simeval against the rule's matched groups and
// current state. Keeping them as distinct fields means a literal response
// containing "+", "-", "(", or a decimal point is never mistaken for an
// expression.
type SimRule struct {
	Command        string `yaml:"command"`
	Response       string `yaml:"response"`
	ResponseExpr   string `yaml:"response_expr"`
	Action         string `yaml:"action"`
	Target         string `yaml:"target"`
	Value          string `yaml:"value"`
	ResponseEval   string `yaml:"response_eval_order"` // "pre" | "post", default "post"
	compiled       *regexp.Regexp
	isExactLiteral bool
}

// Simulation holds the initial state map and the ordered rule list.
type Simulation struct {
	State map[string]any `yaml:"state"`
	SCPI  []*SimRule      `yaml:"scpi"`
}

// Spec is the fully parsed, validated profile.
type Spec struct {
	ModelID       string       `yaml:"model_id"`
	DeviceType    DeviceType   `yaml:"device_type"`
	Channels      []ChannelSpec `yaml:"channels"`
	AccuracyTable map[string]AccuracySpec `yaml:"accuracy_table"`
	SafetySchema  SafetySchema `yaml:"safety_schema"`
	Simulation    Simulation   `yaml:"simulation"`

	// SCPITemplates optionally overrides the built-in device-type command
	// templates: a profile-declared template wins when present, otherwise
	// the built-in device-type template applies.
	SCPITemplates map[string]string `yaml:"scpi_templates"`

	channelByIndex map[int]*ChannelSpec
}

// Load reads and validates a profile from a YAML file at path.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pterrors.NewConfigError(fmt.Sprintf("read profile %s", path), err)
	}
	return Parse(data)
}

// Parse validates a profile already read into memory, detecting and
// migrating the legacy v1 simulation rule shape when encountered rather
// than silently misinterpreting it.
func Parse(data []byte) (*Spec, error) {
	migrated, err := migrateLegacySimShape(data)
	if err != nil {
		return nil, pterrors.NewProfileError("", "legacy simulation shape migration failed", err)
	}

	if err := ValidateStructure(migrated); err != nil {
		return nil, pterrors.NewProfileError("", "structural validation failed", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(migrated, &spec); err != nil {
		return nil, pterrors.NewProfileError("", "yaml decode failed", err)
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	if s.ModelID == "" {
		return pterrors.NewProfileError(s.ModelID, "model_id is required", nil)
	}
	if !validDeviceType(s.DeviceType) {
		return pterrors.NewProfileError(s.ModelID, fmt.Sprintf("unknown device_type %q", s.DeviceType), nil)
	}

	s.channelByIndex = make(map[int]*ChannelSpec, len(s.Channels))
	for i := range s.Channels {
		ch := &s.Channels[i]
		if _, dup := s.channelByIndex[ch.Index]; dup {
			return pterrors.NewProfileError(s.ModelID, fmt.Sprintf("duplicate channel index %d", ch.Index), nil)
		}
		s.channelByIndex[ch.Index] = ch
	}

	for idx := range s.SafetySchema.Channels {
		if _, ok := s.channelByIndex[idx]; !ok {
			return pterrors.NewProfileError(s.ModelID, fmt.Sprintf("safety_schema references unknown channel %d", idx), nil)
		}
	}

	for i, rule := range s.Simulation.SCPI {
		if rule.Command == "" {
			return pterrors.NewProfileError(s.ModelID, fmt.Sprintf("simulation rule %d has empty command", i), nil)
		}
		re, err := regexp.Compile(rule.Command)
		if err != nil {
			return pterrors.NewProfileError(s.ModelID, fmt.Sprintf("simulation rule %d pattern %q does not compile", i, rule.Command), err)
		}
		rule.compiled = re
		rule.isExactLiteral = re.String() == regexp.QuoteMeta(rule.Command)
		if rule.Response != "" && rule.ResponseExpr != "" {
			return pterrors.NewProfileError(s.ModelID, fmt.Sprintf("simulation rule %d sets both response and response_expr", i), nil)
		}
		if rule.ResponseEval == "" {
			rule.ResponseEval = "post"
		}
		if rule.ResponseEval != "pre" && rule.ResponseEval != "post" {
			return pterrors.NewProfileError(s.ModelID, fmt.Sprintf("simulation rule %d response_eval_order must be pre or post", i), nil)
		}
	}

	return nil
}

// Channel looks up a channel by index.
func (s *Spec) Channel(i int) (*ChannelSpec, bool) {
	ch, ok := s.channelByIndex[i]
	return ch, ok
}

// Accuracy looks up an accuracy-table entry by mode/range key.
func (s *Spec) Accuracy(modeKey string) (*AccuracySpec, bool) {
	a, ok := s.AccuracyTable[modeKey]
	if !ok {
		return nil, false
	}
	return &a, true
}

// SimRules returns the ordered simulation rule list.
func (s *Spec) SimRules() []*SimRule { return s.Simulation.SCPI }

// CompiledPattern exposes the compiled regexp for a rule (nil until
// validate() has run).
func (r *SimRule) CompiledPattern() *regexp.Regexp { return r.compiled }

// IsExactLiteral reports whether the rule's command is a plain literal
// rather than a true regex (used only for diagnostics).
func (r *SimRule) IsExactLiteral() bool { return r.isExactLiteral }

// ResolvePath resolves a profile reference that is either an absolute/
// relative filesystem path or a namespaced catalog key
// (e.g. "keysight/DSOX1204G") against catalogRoot.
func ResolvePath(ref, catalogRoot string) (string, error) {
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	candidate := filepath.Join(catalogRoot, ref+".yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", pterrors.NewProfileError(ref, "profile reference not found in catalog or filesystem", nil)
}
