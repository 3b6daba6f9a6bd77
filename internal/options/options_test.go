package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	capacity int
	name     string
	calls    []string
}

func withCapacity(n int) Option[*testConfig] {
	return New(func(c *testConfig) error {
		if n <= 0 {
			return errors.New("capacity must be positive")
		}
		c.capacity = n
		c.calls = append(c.calls, "capacity")

		return nil
	})
}

func withName(name string) Option[*testConfig] {
	return NoError(func(c *testConfig) {
		c.name = name
		c.calls = append(c.calls, "name")
	})
}

func TestApply(t *testing.T) {
	cfg := &testConfig{}

	err := Apply(cfg, withCapacity(4), nil, withName("fetch"))
	require.NoError(t, err)
	require.Equal(t, 4, cfg.capacity)
	require.Equal(t, "fetch", cfg.name)
	require.Equal(t, []string{"capacity", "name"}, cfg.calls)
}

func TestApply_StopsAtFirstError(t *testing.T) {
	cfg := &testConfig{}

	err := Apply(cfg, withName("first"), withCapacity(0), withName("never"))
	require.EqualError(t, err, "capacity must be positive")
	require.Equal(t, "first", cfg.name)
	require.Equal(t, []string{"name"}, cfg.calls)
}

func TestApply_NoOptions(t *testing.T) {
	cfg := &testConfig{capacity: 7}
	require.NoError(t, Apply(cfg))
	require.Equal(t, 7, cfg.capacity)
}
