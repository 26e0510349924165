package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/coordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "smarthome.yaml")
	content := "owner: 0xOwner\n" +
		"thresholds:\n  temperature: 30\n  lightIntensity: 600\n  securityAlert: 80\n" +
		"store:\n  kind: sqlite\n  path: " + filepath.Join(dir, "state.db") + "\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	caller = ""
	checkReading = 0
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSetThresholdThenStatus(t *testing.T) {
	config := writeConfig(t)

	out, err := execute(t, "--config", config, "set-threshold", "temperature", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "temperature threshold set to 42")

	out, err = execute(t, "--config", config, "status")
	require.NoError(t, err)
	assert.Regexp(t, `temperature threshold\s+42`, out)
	assert.Regexp(t, `light intensity threshold\s+600`, out)
}

func TestSetThresholdByStrangerFails(t *testing.T) {
	config := writeConfig(t)

	_, err := execute(t, "--config", config, "set-threshold", "lightIntensity", "1", "--caller", "0xStranger")
	assert.ErrorIs(t, err, coordinator.ErrUnauthorized)
}

func TestCheckWithReading(t *testing.T) {
	config := writeConfig(t)

	out, err := execute(t, "--config", config, "check", "securityAlert", "--reading", "95")
	require.NoError(t, err)
	assert.Contains(t, out, "emitted SecurityAlertThresholdCrossed")

	out, err = execute(t, "--config", config, "status")
	require.NoError(t, err)
	assert.Regexp(t, `security alert status\s+true`, out)
	assert.Contains(t, out, "SecurityAlertThresholdCrossed reading=95 threshold=80")

	out, err = execute(t, "--config", config, "check", "temperature", "--reading", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "below threshold 30")
}

func TestCheckUnknownSignal(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "check", "humidity")
	assert.Error(t, err)
}
