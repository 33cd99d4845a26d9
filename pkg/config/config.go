package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultRepoName is the dataset repository created when none is configured.
	DefaultRepoName = "longbench-results"

	// DefaultEndpoint is the Hugging Face Hub API endpoint.
	DefaultEndpoint = "https://huggingface.co"

	// DefaultResultsDir is the default directory of result files to publish.
	DefaultResultsDir = "./results"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// envPrefix namespaces all tool-specific environment variables.
	envPrefix = "HFUPLOADOOR"
)

// Supported upload methods.
const (
	MethodHF = "hf"
	MethodS3 = "s3"
)

// DefaultMethod is the default upload backend.
const DefaultMethod = MethodHF

// Config is the root configuration for hfuploadoor.
type Config struct {
	LogLevel string       `yaml:"log_level" mapstructure:"log_level"`
	HF       HFConfig     `yaml:"hf" mapstructure:"hf"`
	Upload   UploadConfig `yaml:"upload" mapstructure:"upload"`
}

// HFConfig contains Hugging Face Hub settings. Username is the
// namespace the dataset repository lives under; when empty it is
// resolved from the token via the whoami endpoint.
type HFConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	Username string `yaml:"username" mapstructure:"username"`
	RepoName string `yaml:"repo_name" mapstructure:"repo_name"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Private  bool   `yaml:"private" mapstructure:"private"`
}

// UploadConfig selects the upload backend and the local source directory.
type UploadConfig struct {
	Method     string    `yaml:"method" mapstructure:"method"`
	ResultsDir string    `yaml:"results_dir" mapstructure:"results_dir"`
	S3         *S3Config `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3Config contains settings for the S3-compatible upload backend.
type S3Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// Load builds the configuration from an optional YAML file, a local
// .env file and the environment. Environment variables win over file
// values. The path may be empty, in which case configuration comes
// from the environment alone.
func Load(path string) (*Config, error) {
	// A .env next to the binary mirrors how CI secrets are injected.
	// Absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The canonical Hugging Face variables are accepted alongside the
	// prefixed forms so existing HF_TOKEN secrets keep working.
	_ = v.BindEnv("hf.token", envPrefix+"_HF_TOKEN", "HF_TOKEN")
	_ = v.BindEnv("hf.username", envPrefix+"_HF_USERNAME", "HF_USERNAME")
	_ = v.BindEnv("hf.repo_name", envPrefix+"_HF_REPO_NAME", "HF_REPO_NAME")
	_ = v.BindEnv("hf.endpoint", envPrefix+"_HF_ENDPOINT", "HF_ENDPOINT")

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every known key so AutomaticEnv lookups
// resolve during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("hf.token", "")
	v.SetDefault("hf.username", "")
	v.SetDefault("hf.repo_name", DefaultRepoName)
	v.SetDefault("hf.endpoint", DefaultEndpoint)
	v.SetDefault("hf.private", false)
	v.SetDefault("upload.method", DefaultMethod)
	v.SetDefault("upload.results_dir", DefaultResultsDir)
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.region", "")
	v.SetDefault("upload.s3.endpoint_url", "")
	v.SetDefault("upload.s3.access_key_id", "")
	v.SetDefault("upload.s3.secret_access_key", "")
	v.SetDefault("upload.s3.force_path_style", false)
	v.SetDefault("upload.s3.prefix", "")
	v.SetDefault("upload.s3.storage_class", "")
	v.SetDefault("upload.s3.acl", "")
}

// Validate checks the configuration for errors. It runs before any
// network call so a missing credential never reaches the wire.
func (c *Config) Validate() error {
	if c.HF.Token == "" {
		return fmt.Errorf("HF_TOKEN is required (set it in the environment or a .env file)")
	}

	switch c.Upload.Method {
	case MethodHF:
	case MethodS3:
		if c.Upload.S3 == nil || c.Upload.S3.Bucket == "" {
			return fmt.Errorf("upload.s3.bucket is required for method %q", MethodS3)
		}
	default:
		return fmt.Errorf("unsupported upload method %q (must be %q or %q)",
			c.Upload.Method, MethodHF, MethodS3)
	}

	if c.Upload.ResultsDir == "" {
		return fmt.Errorf("upload.results_dir must not be empty")
	}

	return nil
}
