package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("LS_APP_KEY", "secret-key")
	t.Setenv("LS_ACCOUNT_ID", "acc-1")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "broker:\n  appkey: ${LS_APP_KEY}\n  appsecretkey: x\n  account_id: ${LS_ACCOUNT_ID}\n  account_password: y\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "secret-key", cfg.Broker.AppKey)
	require.Equal(t, "acc-1", cfg.Broker.AccountID)
	require.Equal(t, 0.20, cfg.Risk.MaxMDD)
	require.Equal(t, "MACrossStrategy", cfg.Strategy.Name)
	require.NotNil(t, cfg.Strategy.Params)
}

func TestLoad_MissingRequiredKeyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker:\n  appkey: x\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
