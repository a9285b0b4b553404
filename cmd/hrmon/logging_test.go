package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggingCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		cfgLevel string
		expected logrus.Level
	}{
		{name: "default is silent", expected: logrus.PanicLevel},
		{name: "config level", cfgLevel: "warn", expected: logrus.WarnLevel},
		{name: "verbose overrides config", args: []string{"--verbose"}, cfgLevel: "warn", expected: logrus.DebugLevel},
		{name: "log-level wins over verbose", args: []string{"--verbose", "--log-level", "error"}, expected: logrus.ErrorLevel},
		{name: "log-level info", args: []string{"--log-level", "info"}, expected: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			if tt.cfgLevel != "" {
				cfg.LogLevel = tt.cfgLevel
			}

			logger, err := configureLogger(newLoggingCmd(t, tt.args...), cfg)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, logger.GetLevel())
		})
	}
}

func TestConfigureLogger_InvalidLevel(t *testing.T) {
	_, err := configureLogger(newLoggingCmd(t, "--log-level", "trace"), config.DefaultConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level: trace")
}
