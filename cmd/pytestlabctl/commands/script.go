package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	pterrors "pytestlab/internal/errors"
)

// Step is one line of a replay script: a single write or query against
// one bench alias, issued in document order.
type Step struct {
	Alias   string `yaml:"alias"`
	Op      string `yaml:"op"` // "write" | "query"
	Command string `yaml:"command"`
}

// Script is the ordered call sequence `replay record`/`replay run` drive
// against a bench, independent of the bench descriptor itself so the same
// script can be replayed against hardware, simulation, or a recorded log.
type Script struct {
	Steps []Step `yaml:"steps"`
}

func loadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pterrors.NewConfigError(fmt.Sprintf("read script %s", path), err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, pterrors.NewConfigError("parse script", err)
	}
	for i, step := range s.Steps {
		if step.Op != "write" && step.Op != "query" {
			return nil, pterrors.NewConfigError("script", fmt.Errorf("step %d: op must be write or query, got %q", i, step.Op))
		}
	}
	return &s, nil
}
