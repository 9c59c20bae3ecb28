//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	ResetConfig()

	assert.Equal(t, "http://localhost:48081", VConfig.GetString(APIBase))
	assert.Equal(t, "http://localhost:48082", VConfig.GetString(AuthBase))
	assert.Equal(t, "1", VConfig.GetString(APITenant))
	assert.Equal(t, 10*time.Second, VConfig.GetDuration(HTTPTimeout))
	assert.Equal(t, 1, VConfig.GetInt(HTTPRetries))
	assert.Equal(t, 25*time.Minute, VConfig.GetDuration(SessionTTL))
	assert.Equal(t, 30*time.Minute, VConfig.GetDuration(TokenMaxLifetime))
	assert.NotEmpty(t, VConfig.GetString(MockSecret))
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("AUTHPROBE_API_BASE", "http://portal.internal:48081")
	t.Setenv("AUTHPROBE_HTTP_RETRIES", "3")
	ResetConfig()

	assert.Equal(t, "http://portal.internal:48081", VConfig.GetString(APIBase))
	assert.Equal(t, 3, VConfig.GetInt(HTTPRetries))
}

func TestConfigFileOverride(t *testing.T) {
	dir := t.TempDir()
	content := `
api:
  base: http://staging:48081
  tenant: "7"
http:
  timeout: 3s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authprobe-config.yaml"), []byte(content), 0o600))
	t.Setenv(ConfigPathEnv, dir)
	ResetConfig()

	require.NoError(t, Load())
	assert.Equal(t, "http://staging:48081", VConfig.GetString(APIBase))
	assert.Equal(t, "7", VConfig.GetString(APITenant))
	assert.Equal(t, 3*time.Second, VConfig.GetDuration(HTTPTimeout))
	// Untouched keys keep their defaults
	assert.Equal(t, "http://localhost:48082", VConfig.GetString(AuthBase))
}

func TestMissingConfigFileIsNotAnError(t *testing.T) {
	t.Setenv(ConfigPathEnv, t.TempDir())
	ResetConfig()

	assert.NoError(t, Load())
}

func TestLoadIsOnceGuarded(t *testing.T) {
	t.Setenv(ConfigPathEnv, t.TempDir())
	ResetConfig()

	require.NoError(t, Load())
	require.NoError(t, Load())
}
