package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestGetConfigString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fileContent"), 0o644))

	tests := []struct {
		name       string
		configFile string
		configBody string
		expected   string
	}{
		{"nothing set", "", "", ""},
		{"body only", "", "configBody", "configBody"},
		{"body wins over file", path, "configBody", "configBody"},
		{"file only", path, "", "fileContent"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			configBody, err := getConfigString(test.configFile, test.configBody)
			require.NoError(t, err)
			require.Equal(t, test.expected, configBody)
		})
	}
}

func TestShouldReturnErrorIfConfigFileDoesNotExist(t *testing.T) {
	configBody, err := getConfigString(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
	require.Empty(t, configBody)
}

func TestGetConfig(t *testing.T) {
	app := cli.NewApp()
	app.Flags = baseFlags

	set := flag.NewFlagSet("test", 0)
	for _, f := range baseFlags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{
		"--config-body", "restart_pause: 1s\nprobe_codecs: false",
		"--url", "https://example.com/whep/live",
		"--token", "secret",
	}))

	conf, err := getConfig(cli.NewContext(app, set, nil))
	require.NoError(t, err)
	require.Equal(t, "https://example.com/whep/live", conf.URL)
	require.Equal(t, "secret", conf.Token)
	require.Equal(t, time.Second, conf.RestartPause)
	require.False(t, conf.ProbeCodecs)
}
