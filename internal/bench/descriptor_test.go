package bench

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDescriptorParsesMinimalYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.yaml", `
bench_name: smoke
instruments:
  dmm1:
    profile: vendor/dmm
`)
	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", d.BenchName)
	assert.Contains(t, d.Instruments, "dmm1")
}

func TestLoadDescriptorRejectsMissingBenchName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.yaml", `
instruments:
  dmm1:
    profile: vendor/dmm
`)
	_, err := LoadDescriptor(path)
	assert.Error(t, err)
}

func TestLoadDescriptorRejectsNoInstruments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.yaml", `
bench_name: smoke
`)
	_, err := LoadDescriptor(path)
	assert.Error(t, err)
}
