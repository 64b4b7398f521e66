package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port             string
	Env              string
	APIPrefix        string
	DataDir          string
	DatabaseURL      string
	CORSAllowOrigin  []string
	SummarizerAPIKey string
	SummarizerModel  string
	SummarizerURL    string
	SummarizerRPS    float64
	WorkerCount      int
	QueueSize        int
	JobTimeout       time.Duration
	ShutdownTimeout  time.Duration
	OCRmyPDFBin      string
	InboxDir         string
	LogJSON          bool
	LogLevel         string
	UploadRate       float64
	UploadBurst      int
}

var defaults = map[string]any{
	"port":               "8000",
	"env":                "dev",
	"api_prefix":         "/api",
	"data_dir":           "data",
	"database_url":       "sqlite:///data/app.db",
	"cors_allow_origins": "http://localhost:5173",
	"mistral_api_key":    "",
	"summarizer_model":   "mistral-large-latest",
	"summarizer_url":     "https://api.mistral.ai/v1/chat/completions",
	"summarizer_rps":     1.0,
	"worker_count":       4,
	"queue_size":         256,
	"job_timeout":        "0s",
	"shutdown_timeout":   "30s",
	"ocrmypdf_bin":       "ocrmypdf",
	"inbox_dir":          "",
	"log_json":           true,
	"log_level":          "info",
	"upload_rate":        2.0,
	"upload_burst":       10,
}

// New returns a viper instance with defaults registered and environment
// lookup enabled. Callers may bind flags before calling FromViper.
func New() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
	return v
}

// Load reads configuration from docflow.yaml, .env files and the environment.
// Environment variables win over files.
func Load() (Config, error) {
	v := New()
	if err := ReadFiles(v, ""); err != nil {
		return Config{}, err
	}
	return FromViper(v), nil
}

// ReadFiles merges a YAML config file and local env files into v. An explicit
// configFile must exist and parse; without one, docflow.yaml in the working
// directory is optional but must parse when present.
func ReadFiles(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", configFile)
		}
	} else {
		v.SetConfigName("docflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return errors.Wrap(err, "read docflow.yaml")
			}
		}
	}
	loadEnvFiles(v, ".env", "cmd/.env")
	return nil
}

// FromViper materializes a Config from v.
func FromViper(v *viper.Viper) Config {
	workers := v.GetInt("worker_count")
	if workers <= 0 {
		workers = 4
	}
	queueSize := v.GetInt("queue_size")
	if queueSize <= 0 {
		queueSize = 256
	}
	shutdown := v.GetDuration("shutdown_timeout")
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	jobTimeout := v.GetDuration("job_timeout")
	if jobTimeout < 0 {
		jobTimeout = 0
	}

	return Config{
		Port:             strings.TrimSpace(v.GetString("port")),
		Env:              normalizeEnv(v.GetString("env")),
		APIPrefix:        normalizePrefix(v.GetString("api_prefix")),
		DataDir:          strings.TrimSpace(v.GetString("data_dir")),
		DatabaseURL:      strings.TrimSpace(v.GetString("database_url")),
		CORSAllowOrigin:  withLocalOrigins(splitAndTrim(v.GetString("cors_allow_origins"))),
		SummarizerAPIKey: strings.TrimSpace(v.GetString("mistral_api_key")),
		SummarizerModel:  strings.TrimSpace(v.GetString("summarizer_model")),
		SummarizerURL:    strings.TrimSpace(v.GetString("summarizer_url")),
		SummarizerRPS:    v.GetFloat64("summarizer_rps"),
		WorkerCount:      workers,
		QueueSize:        queueSize,
		JobTimeout:       jobTimeout,
		ShutdownTimeout:  shutdown,
		OCRmyPDFBin:      strings.TrimSpace(v.GetString("ocrmypdf_bin")),
		InboxDir:         strings.TrimSpace(v.GetString("inbox_dir")),
		LogJSON:          v.GetBool("log_json"),
		LogLevel:         v.GetString("log_level"),
		UploadRate:       v.GetFloat64("upload_rate"),
		UploadBurst:      v.GetInt("upload_burst"),
	}
}

// SummarizerEnabled reports whether a summarizer credential is configured.
func (c Config) SummarizerEnabled() bool {
	return c.SummarizerAPIKey != ""
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func withLocalOrigins(origins []string) []string {
	seen := make(map[string]struct{}, len(origins)+2)
	out := make([]string, 0, len(origins)+2)
	for _, o := range append(origins, "http://localhost", "http://127.0.0.1") {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

func normalizePrefix(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}
