package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"GXY_NTHREADS", "GXY_RAYS_PER_PACKET", "GXY_PERMUTE_PIXELS", "GXY_WRITE_IMAGES"} {
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.NThreads)
	assert.Equal(t, 1_000_000, cfg.RaysPerPacket)
	assert.True(t, cfg.PermutePixels)
	assert.False(t, cfg.WriteImages)
}

func TestFromEnvWriteImagesForcesPermuteOff(t *testing.T) {
	t.Setenv("GXY_WRITE_IMAGES", "true")
	require.NoError(t, os.Unsetenv("GXY_PERMUTE_PIXELS"))

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.WriteImages)
	assert.False(t, cfg.PermutePixels)
}

func TestFromEnvExplicitOverridesDefault(t *testing.T) {
	t.Setenv("GXY_NTHREADS", "12")
	t.Setenv("GXY_RAYS_PER_PACKET", "42")
	t.Setenv("GXY_PERMUTE_PIXELS", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.NThreads)
	assert.Equal(t, 42, cfg.RaysPerPacket)
	assert.False(t, cfg.PermutePixels)
}

func TestFromEnvBadIntReturnsError(t *testing.T) {
	t.Setenv("GXY_NTHREADS", "not-a-number")
	_, err := FromEnv()
	assert.Error(t, err)
}
