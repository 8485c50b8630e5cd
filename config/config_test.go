package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerOptionsNormalizeUnicastDefaults(t *testing.T) {
	t.Parallel()

	o := ServerOptions{}.Normalize()
	require.Equal(t, DefaultChunkSize, o.ChunkSize)
	require.Equal(t, DefaultFECGroup, o.FECGroup)
	require.Equal(t, DefaultSyncInterval, o.SyncInterval)
	require.Equal(t, DefaultFPS, o.FPS)
}

func TestServerOptionsNormalizeSatelliteShrinksChunkSize(t *testing.T) {
	t.Parallel()

	o := ServerOptions{Satellite: true}.Normalize()
	require.Equal(t, DefaultSatelliteChunkSize, o.ChunkSize)
}

func TestServerOptionsNormalizeRespectsExplicitChunkSize(t *testing.T) {
	t.Parallel()

	o := ServerOptions{Satellite: true, ChunkSize: 512}.Normalize()
	require.Equal(t, 512, o.ChunkSize)
}

func TestClientOptionsNormalizeUsesFPSDerivedLag(t *testing.T) {
	t.Parallel()

	o := ClientOptions{FPS: 25}.Normalize()
	require.Equal(t, uint32(DefaultReorderWindow), o.ReorderWindow)
	require.Equal(t, 80*time.Millisecond, o.MaxFrameLag)
}

func TestClientOptionsNormalizeFallsBackWithoutFPS(t *testing.T) {
	t.Parallel()

	o := ClientOptions{}.Normalize()
	require.Equal(t, DefaultMaxFrameLag, o.MaxFrameLag)
}

func TestEnvOrIntFallsBackOnUnset(t *testing.T) {
	t.Parallel()
	require.Equal(t, 42, EnvOrInt("SANCHEZ_TEST_UNSET_INT", 42))
}

func TestEnvOrIntReadsSet(t *testing.T) {
	t.Setenv("SANCHEZ_TEST_SET_INT", "7")
	require.Equal(t, 7, EnvOrInt("SANCHEZ_TEST_SET_INT", 42))
}
