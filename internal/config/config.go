package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AmmannChristian/randqa/internal/randomness"
)

// Config holds the service configuration
type Config struct {
	// Server configuration (HTTP API, health, metrics)
	ServerPort  int
	ServerHost  string
	GRPCEnabled bool
	GRPCPort    int

	// TLS for gRPC and HTTP
	TLSEnabled    bool
	TLSCertFile   string
	TLSKeyFile    string
	TLSCAFile     string
	TLSClientAuth string
	TLSMinVersion string

	// Logging
	LogLevel string

	// Request body limit for the HTTP API
	MaxUploadSize int64 // in bytes

	// Request timeouts
	Timeout time.Duration

	// Metrics
	MetricsEnabled bool

	// Analysis defaults, overridable per request
	MaxBits           int
	BlockSize         int
	APEnPatternLength int
	RCTCutoff         int
	APTWindow         int
	Alpha             float64
	MinEntropy        float64
	FDREnabled        bool
}

// LoadDotEnv loads variables from a .env file, overriding the process
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Overload(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("dotenv %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	defaults := randomness.DefaultParams()

	config := &Config{
		// Defaults
		ServerPort:        getEnvAsInt("METRICS_PORT", getEnvAsInt("SERVER_PORT", 9091)),
		ServerHost:        getEnv("SERVER_HOST", "0.0.0.0"),
		GRPCEnabled:       getEnvAsBool("GRPC_ENABLED", false),
		GRPCPort:          getEnvAsInt("GRPC_PORT", 9090),
		TLSEnabled:        getEnvAsBool("TLS_ENABLED", false),
		TLSCertFile:       getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:        getEnv("TLS_KEY_FILE", ""),
		TLSCAFile:         getEnv("TLS_CA_FILE", ""),
		TLSClientAuth:     getEnv("TLS_CLIENT_AUTH", "none"),
		TLSMinVersion:     getEnv("TLS_MIN_VERSION", "1.2"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MaxUploadSize:     getEnvAsInt64("MAX_UPLOAD_SIZE", 16*1024*1024), // 16MB default
		Timeout:           getEnvAsDuration("TIMEOUT", 2*time.Minute),
		MetricsEnabled:    getEnvAsBool("METRICS_ENABLED", true),
		MaxBits:           getEnvAsInt("MAX_BITS", 10_000_000),
		BlockSize:         getEnvAsInt("BLOCK_SIZE", defaults.BlockSize),
		APEnPatternLength: getEnvAsInt("APEN_PATTERN_LENGTH", defaults.PatternLength),
		RCTCutoff:         getEnvAsInt("RCT_CUTOFF", defaults.RCTCutoff),
		APTWindow:         getEnvAsInt("APT_WINDOW", defaults.APTWindow),
		Alpha:             getEnvAsFloat("ALPHA", defaults.Alpha),
		MinEntropy:        getEnvAsFloat("MIN_ENTROPY", defaults.MinEntropy),
		FDREnabled:        getEnvAsBool("FDR_ENABLED", defaults.FDREnabled),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.ServerPort)
	}

	if c.GRPCEnabled && (c.GRPCPort < 1 || c.GRPCPort > 65535) {
		return fmt.Errorf("invalid gRPC port: %d (must be 1-65535)", c.GRPCPort)
	}

	if c.GRPCEnabled && c.GRPCPort == c.ServerPort {
		return fmt.Errorf("gRPC port %d collides with server port", c.GRPCPort)
	}

	if c.MaxUploadSize < 1024 {
		return fmt.Errorf("max upload size too small: %d (must be at least 1024 bytes)", c.MaxUploadSize)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.MaxBits < 1 {
		return fmt.Errorf("invalid MAX_BITS: %d (must be positive)", c.MaxBits)
	}

	if err := c.AnalysisParams().Validate(); err != nil {
		return fmt.Errorf("invalid analysis defaults: %w", err)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("invalid TLS_CERT_FILE: required when TLS_ENABLED=true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("invalid TLS_KEY_FILE: required when TLS_ENABLED=true")
		}
		if _, err := parseTLSClientAuth(c.TLSClientAuth); err != nil {
			return err
		}
		if _, err := parseTLSMinVersion(c.TLSMinVersion); err != nil {
			return err
		}
	}

	return nil
}

// AnalysisParams returns the configured analysis defaults.
func (c *Config) AnalysisParams() randomness.Params {
	return randomness.Params{
		BlockSize:     c.BlockSize,
		PatternLength: c.APEnPatternLength,
		RCTCutoff:     c.RCTCutoff,
		APTWindow:     c.APTWindow,
		Alpha:         c.Alpha,
		MinEntropy:    c.MinEntropy,
		FDREnabled:    c.FDREnabled,
	}
}

// TLSClientAuthType returns the parsed tls.ClientAuthType from configuration.
func (c *Config) TLSClientAuthType() (tls.ClientAuthType, error) {
	return parseTLSClientAuth(c.TLSClientAuth)
}

// TLSMinVersionValue returns the configured minimum TLS version (defaults to TLS 1.2).
func (c *Config) TLSMinVersionValue() (uint16, error) {
	return parseTLSMinVersion(c.TLSMinVersion)
}

// Helper functions to read environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvParsed returns the parsed value of key, or defaultValue when the
// variable is unset or does not parse.
func getEnvParsed[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := parse(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	return getEnvParsed(key, defaultValue, strconv.Atoi)
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	return getEnvParsed(key, defaultValue, func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) })
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	return getEnvParsed(key, defaultValue, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getEnvAsBool(key string, defaultValue bool) bool {
	return getEnvParsed(key, defaultValue, strconv.ParseBool)
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnvParsed(key, defaultValue, time.ParseDuration)
}

func parseTLSClientAuth(mode string) (tls.ClientAuthType, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "none", "noclientcert":
		return tls.NoClientCert, nil
	case "request", "requestclientcert":
		return tls.RequestClientCert, nil
	case "requireany", "requireanyclientcert":
		return tls.RequireAnyClientCert, nil
	case "verifyifgiven", "verify_client_cert_if_given":
		return tls.VerifyClientCertIfGiven, nil
	case "requireandverify", "requireandverifyclientcert", "mtls":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("invalid TLS_CLIENT_AUTH: %s", mode)
	}
}

func parseTLSMinVersion(version string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(version)) {
	case "", "default", "1.2", "tls1.2", "tls12":
		return tls.VersionTLS12, nil
	case "1.3", "tls1.3", "tls13":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("invalid TLS_MIN_VERSION: %s (use 1.2 or 1.3)", version)
	}
}
