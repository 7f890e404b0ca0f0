// Package config provides the buildbridge configuration.
// Values are loaded from .buildbridge/config.yaml, then overridden by
// environment variables, then by CLI flags where a command offers one.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name for buildbridge configuration
	ConfigDir = ".buildbridge"
	// ConfigFile is the name of the configuration file
	ConfigFile = "config.yaml"
	// ConfigPath is the full path to the config file relative to project root
	ConfigPath = ConfigDir + "/" + ConfigFile
)

// Environment variables read by ApplyEnv.
const (
	EnvUnityPath           = "UNITY_PATH"
	EnvUnityBuildMethod    = "UNITY_BUILD_METHOD"
	EnvUnityBuildTarget    = "UNITY_BUILD_TARGET"
	EnvUnityDockerImage    = "UNITY_DOCKER_IMAGE"
	EnvBuildTimeout        = "BUILD_TIMEOUT"
	EnvR2Endpoint          = "R2_ENDPOINT"
	EnvR2AccessKeyID       = "R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey   = "R2_SECRET_ACCESS_KEY"
	EnvR2BucketName        = "R2_BUCKET_NAME"
	EnvR2PublicURL         = "R2_PUBLIC_URL"
	EnvDiscordWebhookURL   = "DISCORD_WEBHOOK_URL"
	EnvGitHubWebhookSecret = "GITHUB_WEBHOOK_SECRET"
	EnvGitHubToken         = "GITHUB_TOKEN"
	EnvPort                = "PORT"
	EnvRedisAddr           = "REDIS_ADDR"
	EnvLogLevel            = "LOG_LEVEL"
	EnvLogFormat           = "LOG_FORMAT"
)

// Defaults.
const (
	DefaultTargets        = "StandaloneWindows64"
	DefaultRuntime        = RuntimeHost
	DefaultReposDir       = "repos"
	DefaultOutputDir      = "builds"
	DefaultStorageBackend = BackendS3
	DefaultRegion         = "auto"
	DefaultPort           = "3000"
	DefaultStatusContext  = "buildbridge"
	DefaultLogLevel       = "info"
)

// Build runtimes.
const (
	RuntimeHost   = "host"
	RuntimeDocker = "docker"
)

// Storage backends.
const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Config is the full buildbridge configuration.
type Config struct {
	Unity   UnityConfig   `yaml:"unity,omitempty"`
	Workdir WorkdirConfig `yaml:"workdir,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	GitHub  GitHubConfig  `yaml:"github,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level,omitempty"`

	// LogFormat is "text" or "json"
	LogFormat string `yaml:"log_format,omitempty"`
}

// UnityConfig configures the Unity editor invocation.
type UnityConfig struct {
	// Path is the Unity editor executable
	Path string `yaml:"path,omitempty"`

	// BuildMethod is the static method passed to -executeMethod
	BuildMethod string `yaml:"build_method,omitempty"`

	// Targets is the target specification, a name or comma-separated list
	Targets string `yaml:"targets,omitempty"`

	// ExtraArgs are appended to every editor invocation
	ExtraArgs []string `yaml:"extra_args,omitempty"`

	// Timeout bounds a single target build. Zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Runtime is "host" (exec on this machine) or "docker"
	Runtime string `yaml:"runtime,omitempty"`

	Docker DockerConfig `yaml:"docker,omitempty"`
}

// DockerConfig configures containerized builds.
type DockerConfig struct {
	Image      string            `yaml:"image,omitempty"`
	LicenseDir string            `yaml:"license_dir,omitempty"`
	Pull       bool              `yaml:"pull,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
}

// WorkdirConfig locates checkouts and build outputs.
type WorkdirConfig struct {
	ReposDir  string `yaml:"repos_dir,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`
}

// StorageConfig selects and configures the artifact store.
type StorageConfig struct {
	// Backend is "s3" or "local"
	Backend         string `yaml:"backend,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	Region          string `yaml:"region,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	Bucket          string `yaml:"bucket,omitempty"`
	PublicURL       string `yaml:"public_url,omitempty"`

	// LocalDir is the root of the local backend
	LocalDir string `yaml:"local_dir,omitempty"`

	// Concurrency bounds parallel file uploads within one target
	Concurrency int `yaml:"concurrency,omitempty"`
}

// NotifyConfig configures notification sinks.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url,omitempty"`

	// GitHubStatus enables commit statuses on the PR head
	GitHubStatus  bool   `yaml:"github_status,omitempty"`
	StatusContext string `yaml:"status_context,omitempty"`
	PRComment     bool   `yaml:"pr_comment,omitempty"`
}

// GitHubConfig holds GitHub credentials.
type GitHubConfig struct {
	Token         string `yaml:"token,omitempty"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
	APIBaseURL    string `yaml:"api_base_url,omitempty"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Port string `yaml:"port,omitempty"`

	// RedisAddr selects the Redis run status store. Empty means in-memory.
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// PushGateway, when set, receives metrics after one-shot builds
	PushGateway string `yaml:"push_gateway,omitempty"`
}

// Load loads the configuration from the given directory.
// It searches for .buildbridge/config.yaml in the directory and its parents.
//
// If no config file is found, it returns a zero config and nil error.
// If a config file is found but cannot be parsed, it returns an error.
func Load(dir string) (*Config, error) {
	configPath, err := findConfigPath(dir)
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		return &Config{}, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads the configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads the configuration from the current working directory.
func LoadFromCurrentDir() (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return Load(dir)
}

// LoadDotEnv loads a .env file into the process environment. Variables that
// are already set keep their values. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigPath searches for .buildbridge/config.yaml in dir and its parent directories.
// It returns the full path to the config file, or empty string if not found.
func findConfigPath(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	for {
		configPath := filepath.Join(absDir, ConfigPath)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parentDir := filepath.Dir(absDir)
		if parentDir == absDir {
			return "", nil
		}
		absDir = parentDir
	}
}

// ApplyEnv overrides file values with the environment variables that are
// set and non-empty. It returns an error for a malformed BUILD_TIMEOUT.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Unity.Path, EnvUnityPath)
	set(&c.Unity.BuildMethod, EnvUnityBuildMethod)
	set(&c.Unity.Targets, EnvUnityBuildTarget)
	set(&c.Unity.Docker.Image, EnvUnityDockerImage)
	set(&c.Storage.Endpoint, EnvR2Endpoint)
	set(&c.Storage.AccessKeyID, EnvR2AccessKeyID)
	set(&c.Storage.SecretAccessKey, EnvR2SecretAccessKey)
	set(&c.Storage.Bucket, EnvR2BucketName)
	set(&c.Storage.PublicURL, EnvR2PublicURL)
	set(&c.Notify.DiscordWebhookURL, EnvDiscordWebhookURL)
	set(&c.GitHub.WebhookSecret, EnvGitHubWebhookSecret)
	set(&c.GitHub.Token, EnvGitHubToken)
	set(&c.Server.Port, EnvPort)
	set(&c.Server.RedisAddr, EnvRedisAddr)
	set(&c.LogLevel, EnvLogLevel)
	set(&c.LogFormat, EnvLogFormat)

	if v := strings.TrimSpace(getenv(EnvBuildTimeout)); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBuildTimeout, v, err)
		}
		c.Unity.Timeout = d
	}
	return nil
}

// parseTimeout accepts a Go duration or a whole number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	def(&c.Unity.Targets, DefaultTargets)
	def(&c.Unity.Runtime, DefaultRuntime)
	def(&c.Workdir.ReposDir, DefaultReposDir)
	def(&c.Workdir.OutputDir, DefaultOutputDir)
	def(&c.Storage.Backend, DefaultStorageBackend)
	def(&c.Storage.Region, DefaultRegion)
	def(&c.Notify.StatusContext, DefaultStatusContext)
	def(&c.Server.Port, DefaultPort)
	def(&c.LogLevel, DefaultLogLevel)
}

// ResolveString returns the effective value for a string configuration field.
// Precedence: cliValue > envValue > configValue > defaultValue.
// Returns the effective value and its source ("cli", "env", "config", or "default").
func ResolveString(cliValue, envValue, configValue, defaultValue string) (string, string) {
	if cliValue != "" {
		return cliValue, "cli"
	}
	if envValue != "" {
		return envValue, "env"
	}
	if configValue != "" {
		return configValue, "config"
	}
	return defaultValue, "default"
}

// ResolveTargets returns the effective target specification and its source.
func (c *Config) ResolveTargets(cliValue string, getenv func(string) string) (string, string) {
	return ResolveString(cliValue, getenv(EnvUnityBuildTarget), c.Unity.Targets, DefaultTargets)
}

// ResolveLogLevel returns the effective log level and its source.
func (c *Config) ResolveLogLevel(cliValue string, getenv func(string) string) (string, string) {
	return ResolveString(cliValue, getenv(EnvLogLevel), c.LogLevel, DefaultLogLevel)
}

// ResolvePort returns the effective listen port and its source.
func (c *Config) ResolvePort(cliValue string, getenv func(string) string) (string, string) {
	return ResolveString(cliValue, getenv(EnvPort), c.Server.Port, DefaultPort)
}

// Validate reports every setting the serve command needs but lacks.
func (c *Config) Validate() error {
	var errs []error
	missing := func(what, env string) {
		errs = append(errs, fmt.Errorf("%s is required (set %s)", what, env))
	}

	if c.GitHub.WebhookSecret == "" {
		missing("github.webhook_secret", EnvGitHubWebhookSecret)
	}

	switch c.Unity.Runtime {
	case RuntimeHost, "":
		if c.Unity.Path == "" {
			missing("unity.path", EnvUnityPath)
		}
	case RuntimeDocker:
		if c.Unity.Docker.Image == "" {
			missing("unity.docker.image", EnvUnityDockerImage)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown unity.runtime %q (want %s or %s)", c.Unity.Runtime, RuntimeHost, RuntimeDocker))
	}

	switch c.Storage.Backend {
	case BackendS3, "":
		if c.Storage.Endpoint == "" {
			missing("storage.endpoint", EnvR2Endpoint)
		}
		if c.Storage.AccessKeyID == "" {
			missing("storage.access_key_id", EnvR2AccessKeyID)
		}
		if c.Storage.SecretAccessKey == "" {
			missing("storage.secret_access_key", EnvR2SecretAccessKey)
		}
		if c.Storage.Bucket == "" {
			missing("storage.bucket", EnvR2BucketName)
		}
		if c.Storage.PublicURL == "" {
			missing("storage.public_url", EnvR2PublicURL)
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			errs = append(errs, fmt.Errorf("storage.local_dir is required for the local backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q (want %s or %s)", c.Storage.Backend, BackendS3, BackendLocal))
	}

	if c.Notify.GitHubStatus && c.GitHub.Token == "" {
		missing("github.token", EnvGitHubToken)
	}

	return errors.Join(errs...)
}
