package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Device.SerialNumber)
	assert.Empty(t, s.Main.SelectedProductID)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\tnot yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Load(path)
	require.NoError(t, err)

	s.Device.SerialNumber = "abc123"
	s.Device.TeamID = "acme"
	s.Device.Name = "Line 3 Press"
	s.Main.SelectedProductID = 7
	s.Main.GoalCPH = 120.5
	require.NoError(t, s.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.Device, reloaded.Device)
	assert.Equal(t, s.Main, reloaded.Main)
}
