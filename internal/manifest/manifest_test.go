package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

func TestParse_JSONList(t *testing.T) {
	m, err := Parse([]byte(`[
		{"type": "file/json", "path": "a.json"},
		{"type": "FILE/YAML", "path": "/abs/b.yaml.zst"}
	]`), "/data")
	require.NoError(t, err)
	require.Len(t, m.Sources, 2)

	assert.Equal(t, Source{Type: TypeJSON, Path: filepath.Join("/data", "a.json")}, m.Sources[0])
	assert.Equal(t, TypeYAML, m.Sources[1].Type)
	assert.Equal(t, "/abs/b.yaml.zst", m.Sources[1].Path)
	assert.False(t, m.Sources[0].Compressed())
	assert.True(t, m.Sources[1].Compressed())
}

func TestParse_YAMLSourcesKey(t *testing.T) {
	m, err := Parse([]byte(`
sources:
  - type: file/yaml
    path: s.yaml
    compression: zstd
`), "")
	require.NoError(t, err)
	require.Len(t, m.Sources, 1)
	assert.Equal(t, "s.yaml", m.Sources[0].Path)
	assert.True(t, m.Sources[0].Compressed())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", ``, rgpipe.ErrInvalidConfig},
		{"empty list", `[]`, rgpipe.ErrInvalidConfig},
		{"scalar", `"file.json"`, rgpipe.ErrInvalidConfig},
		{"syntax", `[{"type": }`, rgpipe.ErrInvalidConfig},
		{"missing path", `[{"type": "file/json"}]`, rgpipe.ErrInvalidConfig},
		{"missing type", `[{"path": "x"}]`, rgpipe.ErrInvalidConfig},
		{"pickle", `[{"type": "file/pickle", "path": "x.pkl"}]`, rgpipe.ErrUnsupportedSource},
		{"csv", `[{"type": "file/csv", "path": "x.csv"}]`, rgpipe.ErrUnsupportedSource},
		{"gzip", `[{"type": "file/json", "path": "x", "compression": "gzip"}]`, rgpipe.ErrUnsupportedSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_ReportsEverySource(t *testing.T) {
	_, err := Parse([]byte(`[{"type": "file/pickle", "path": "a"}, {"type": "file/json"}]`), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source 0")
	assert.Contains(t, err.Error(), "source 1")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"type": "file/json", "path": "sessions.json"}]`), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)
	assert.Equal(t, filepath.Join(dir, "sessions.json"), m.Sources[0].Path)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, rgpipe.ErrSourceNotFound)
}
