package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalProfile = `
model_id: TEST-PSU-1
device_type: psu
channels:
  - index: 1
    role: output
safety_schema:
  channels:
    1:
      voltage:
        max: 30
simulation:
  state:
    voltage: 0
  scpi:
    - command: ":SOURce1:VOLTage (?P<v>[\\d.]+)"
      action: set
      target: voltage
      value: "float(groups.v)"
    - command: ":MEASure:VOLTage:DC\\? \\(@1\\)"
      response_expr: "state.voltage"
`

func TestParseMinimalProfile(t *testing.T) {
	spec, err := Parse([]byte(minimalProfile))
	require.NoError(t, err)
	assert.Equal(t, "TEST-PSU-1", spec.ModelID)
	assert.Equal(t, DevicePSU, spec.DeviceType)

	ch, ok := spec.Channel(1)
	require.True(t, ok)
	assert.Equal(t, "output", ch.Role)

	require.Len(t, spec.SimRules(), 2)
	assert.Equal(t, "set", spec.SimRules()[0].Action)
	assert.Equal(t, "post", spec.SimRules()[1].ResponseEval)
}

func TestParseRejectsUnknownDeviceType(t *testing.T) {
	_, err := Parse([]byte("model_id: X\ndevice_type: toaster\n"))
	assert.Error(t, err)
}

func TestParseRejectsDuplicateChannelIndex(t *testing.T) {
	_, err := Parse([]byte(`
model_id: X
device_type: dmm
channels:
  - index: 1
  - index: 1
`))
	assert.Error(t, err)
}

func TestParseRejectsSafetySchemaOnUndeclaredChannel(t *testing.T) {
	_, err := Parse([]byte(`
model_id: X
device_type: dmm
channels:
  - index: 1
safety_schema:
  channels:
    2:
      voltage:
        max: 5
`))
	assert.Error(t, err)
}

func TestParseRejectsBadSimulationPattern(t *testing.T) {
	_, err := Parse([]byte(`
model_id: X
device_type: dmm
simulation:
  scpi:
    - command: "(unclosed"
      response: "ok"
`))
	assert.Error(t, err)
}

func TestParseMigratesLegacySimShape(t *testing.T) {
	legacy := `
model_id: LEGACY-1
device_type: dmm
simulation:
  state:
    voltage: 1.0
  rules:
    - match: ":MEASure:VOLTage:DC\\?"
      reply: "state.voltage"
`
	spec, err := Parse([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, spec.SimRules(), 1)
	assert.Equal(t, "state.voltage", spec.SimRules()[0].ResponseExpr)
}

func TestResolvePathPrefersFilesystemPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "direct.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalProfile), 0o644))

	resolved, err := ResolvePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func TestResolvePathFallsBackToCatalog(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "vendor", "model.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(catalogPath), 0o755))
	require.NoError(t, os.WriteFile(catalogPath, []byte(minimalProfile), 0o644))

	resolved, err := ResolvePath("vendor/model", dir)
	require.NoError(t, err)
	assert.Equal(t, catalogPath, resolved)
}

func TestResolvePathNotFound(t *testing.T) {
	_, err := ResolvePath("no/such/model", t.TempDir())
	assert.Error(t, err)
}

func TestLoadReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalProfile), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "TEST-PSU-1", spec.ModelID)
}
