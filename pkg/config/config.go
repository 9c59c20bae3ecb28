//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package config provides configuration management for the oracle using
// [Viper] for flexible configuration sources.
//
// Configuration can be provided via:
//   - YAML configuration files
//   - Environment variables with the AUTHPROBE_ prefix
//   - Programmatic defaults
//
// # Configuration File
//
// By default the oracle looks for authprobe-config.yaml in the current
// directory. Override the location using environment variables:
//
//	AUTHPROBE_CONFIG_PATH=/etc/authprobe
//	AUTHPROBE_CONFIG_FILENAME=staging-config
//
// Example configuration file:
//
//	log:
//	  level: ".:info"
//	api:
//	  base: http://localhost:48081
//	  tenant: "1"
//	auth:
//	  base: http://localhost:48082
//	http:
//	  timeout: 10s
//	  retries: 1
//
// # Environment Variables
//
// All configuration keys can be set via environment variables with the
// AUTHPROBE_ prefix. Dots in key names become underscores:
//
//	AUTHPROBE_LOG_LEVEL=.:debug
//	AUTHPROBE_API_BASE=http://portal.internal:48081
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/spf13/viper"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all oracle environment variables.
	// For example, the key "log.level" becomes AUTHPROBE_LOG_LEVEL.
	EnvVarPrefix string = "AUTHPROBE"

	// ConfigPathEnv is the environment variable that specifies the directory
	// containing the configuration file.
	ConfigPathEnv string = "AUTHPROBE_CONFIG_PATH"

	// ConfigFileNameEnv is the environment variable that specifies the
	// configuration file name (without extension).
	ConfigFileNameEnv string = "AUTHPROBE_CONFIG_FILENAME"

	// ConfigDefaultPath is the default directory to search for config files.
	ConfigDefaultPath string = "."

	// ConfigDefaultFilename is the default configuration file name (without extension).
	ConfigDefaultFilename string = "authprobe-config"
)

// Configuration key constants for use with [VConfig].
const (
	logLevel string = "log.level"

	// APIBase is the base URL of the protected campus-portal API under test.
	APIBase string = "api.base"

	// APITenant is the tenant-context header value attached to every probe.
	APITenant string = "api.tenant"

	// AuthBase is the base URL of the authentication endpoint.
	AuthBase string = "auth.base"

	// HTTPTimeout bounds every network call issued by the oracle.
	HTTPTimeout string = "http.timeout"

	// HTTPRetries is the number of retries on pure network failure.
	// HTTP 4xx/5xx responses are meaningful results and are never retried.
	HTTPRetries string = "http.retries"

	// SessionTTL is the fallback credential lifetime used when a bearer
	// token carries no decodable expiry claim.
	SessionTTL string = "session.ttl"

	// TokenMaxLifetime is the upper bound on token validity accepted by
	// the claim audit before it flags the token lifecycle as too long.
	TokenMaxLifetime string = "token.maxlifetime"

	// MockSecret is the HS256 signing secret used by the embedded mock
	// campus API. Not used when probing a real deployment.
	MockSecret string = "mock.secret"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper configuration instance for the oracle.
	//
	// Use the configuration key constants ([APIBase], [HTTPTimeout], etc.)
	// to access specific settings:
	//
	//	base := config.VConfig.GetString(config.APIBase)
	//
	// VConfig is initialized automatically when [Load] or [Init] is called.
	VConfig *viper.Viper
	logger  = logging.GetLogger("authprobe.config")
)

// Init initializes the configuration system without loading config files.
//
// Init sets up Viper with configuration file paths, environment variable
// handling (AUTHPROBE_ prefix), and default values. It is safe to call
// multiple times; subsequent calls are no-ops.
func Init() {
	once.Do(doInitialize)
}

func getConfigPath() string {
	if configPath, ok := os.LookupEnv(ConfigPathEnv); ok {
		return configPath
	}
	return ConfigDefaultPath
}

func getConfigFileName() string {
	if configName, ok := os.LookupEnv(ConfigFileNameEnv); ok {
		return configName
	}
	return ConfigDefaultFilename
}

func doInitialize() {
	VConfig = viper.New()

	// set up config-file loading: default is './authprobe-config.yaml' but can
	// be overridden with $(AUTHPROBE_CONFIG_PATH)/$(AUTHPROBE_CONFIG_FILENAME).yaml
	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	// set up envvar handling: keys such as 'log.level' become 'AUTHPROBE_LOG_LEVEL'
	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(APIBase, "http://localhost:48081")
	VConfig.SetDefault(APITenant, "1")
	VConfig.SetDefault(AuthBase, "http://localhost:48082")
	VConfig.SetDefault(HTTPTimeout, 10*time.Second)
	VConfig.SetDefault(HTTPRetries, 1)
	VConfig.SetDefault(SessionTTL, 25*time.Minute)
	VConfig.SetDefault(TokenMaxLifetime, 30*time.Minute)
	VConfig.SetDefault(MockSecret, "mock-school-api-secret")
}

// Load initializes configuration and loads settings from files and environment.
//
// Load performs the following steps:
//  1. Calls [Init] if not already called
//  2. Reads the configuration file (if present; missing files are not an error)
//  3. Applies environment variable overrides
//  4. Updates log levels based on configuration
//
// Safe to call concurrently; subsequent calls after the first successful
// load are no-ops that return nil.
func Load() error {
	loadOnce.Do(func() {
		Init()

		// Early log level update from the environment allows debugging the
		// config loading itself.
		if earlyLoglevel := os.Getenv("AUTHPROBE_LOG_LEVEL"); earlyLoglevel != "" {
			if err := logging.UpdateLogLevels(earlyLoglevel); err != nil {
				logger.SysErrorf("Failed updating early log level %s: %+v", earlyLoglevel, err)
				loadErr = err
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		if err := VConfig.ReadInConfig(); err != nil {
			// Only log if it's an actual error, not just a missing config file
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			}
			logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
		}

		loglevel := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(loglevel); err != nil {
			logger.SysErrorf("Failed updating log level %s: %+v", loglevel, err)
			loadErr = err
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig re-initializes the configuration system - only for testing.
func ResetConfig() {
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	Init()
}
