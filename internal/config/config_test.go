package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 3, cfg.TrigMode)
	require.Equal(t, 8, cfg.ThreadNum)
	require.Equal(t, "./www", cfg.DocRoot)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-port=9090", "-thread-num=16", "-doc-root=/srv/www", "-trig-mode=0"})
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 16, cfg.ThreadNum)
	require.Equal(t, "/srv/www", cfg.DocRoot)
	require.Equal(t, 0, cfg.TrigMode)
}

func TestParseRejectsOutOfRangeTrigMode(t *testing.T) {
	_, err := Parse([]string{"-trig-mode=7"})
	require.Error(t, err)
}

func TestParseRejectsOutOfRangePort(t *testing.T) {
	_, err := Parse([]string{"-port=0"})
	require.Error(t, err)
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	_, err := Parse([]string{"-does-not-exist"})
	require.Error(t, err)
}
