package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
)

func TestParseParams(t *testing.T) {
	p, err := ParseParams([]string{"4", "2", "3", "15", "1"})
	require.NoError(t, err)
	assert.Equal(t, Params{Capacity: 4, Fetchers: 2, Decoders: 3, DecodeDelay: 15 * time.Millisecond, ImageID: 1}, p)
}

func TestParseParams_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no values", nil},
		{"too few", []string{"4", "2", "2", "0"}},
		{"too many", []string{"4", "2", "2", "0", "1", "9"}},
		{"non-numeric", []string{"4", "two", "2", "0", "1"}},
		{"zero capacity", []string{"0", "2", "2", "0", "1"}},
		{"zero fetchers", []string{"4", "0", "2", "0", "1"}},
		{"zero decoders", []string{"4", "2", "0", "0", "1"}},
		{"negative delay", []string{"4", "2", "2", "-5", "1"}},
		{"negative image", []string{"4", "2", "2", "0", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParams(tt.args)
			require.ErrorIs(t, err, errs.ErrInvalidParams)
		})
	}
}

func TestDefaultProtocol(t *testing.T) {
	p := DefaultProtocol()
	require.NoError(t, p.Validate())

	assert.Equal(t, 50, p.TotalFragments())
	assert.Equal(t, 300*1601, p.Image().RasterSize())
	assert.Equal(t, 9606, p.Fragment().RasterSize())
	assert.Len(t, p.Endpoints, 3)
	assert.Equal(t, "all.png", p.Output)
	assert.Equal(t, -1, p.Level)

	// Returned endpoints must not alias the package default.
	p.Endpoints[0] = "changed"
	assert.NotEqual(t, "changed", DefaultEndpoints[0])
}

func TestParseProtocol(t *testing.T) {
	data := []byte(`
height: 60
rows_per_fragment: 3
endpoints:
  - http://127.0.0.1:9000/image
resolve_backoff: 250ms
`)

	p, err := ParseProtocol(data)
	require.NoError(t, err)
	assert.Equal(t, 60, p.Height)
	assert.Equal(t, 20, p.TotalFragments())
	assert.Equal(t, []string{"http://127.0.0.1:9000/image"}, p.Endpoints)
	assert.Equal(t, 250*time.Millisecond, p.ResolveBackoff)

	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultWidth, p.Width)
	assert.Equal(t, format.ColorRGBA, p.ColorType)
	assert.Equal(t, DefaultSequenceHeader, p.SequenceHeader)
}

func TestParseProtocol_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "width: [1, 2"},
		{"height not divisible", "rows_per_fragment: 7"},
		{"zero rows", "rows_per_fragment: 0"},
		{"no endpoints", "endpoints: []"},
		{"bit depth", "bit_depth: 16"},
		{"palette", "color_type: 3"},
		{"level", "level: 10"},
		{"attempts", "fetch_attempts: 0"},
		{"payload", "max_fragment_size: 0"},
		{"header", `sequence_header: ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProtocol([]byte(tt.yaml))
			require.ErrorIs(t, err, errs.ErrInvalidProtocol)
		})
	}
}

func TestLoadProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: out.png\n"), 0o600))

	p, err := LoadProtocol(path)
	require.NoError(t, err)
	assert.Equal(t, "out.png", p.Output)

	_, err = LoadProtocol(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
