package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

const (
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

type Config struct {
	Database DatabaseConfig
	Matching MatchingConfig
	Encoder  EncoderConfig
	MinIO    MinIOConfig
	Web      WebConfig
	Models   ModelsConfig
}

type DatabaseConfig struct {
	Backend      string // postgres or mariadb (default postgres)
	URL          string // Connection URL or DSN for the selected backend
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MatchingConfig struct {
	ModelName      string  // Model served by the in-memory index (default face_recognition)
	Threshold      float64 // Default match threshold (default 0.6)
	HNSWMinSize    int     // Index size from which HNSW candidate search kicks in, 0 disables it
	HNSWCandidates int     // Number of HNSW candidates re-ranked exactly (default 32)
}

type EncoderConfig struct {
	URL                 string // defaults to http://localhost:8000
	FetchTimeoutSeconds int    // Image download timeout (default 10)
	MaxImageSize        int    // Longest image side sent to the encoder (default 1024)
}

type MinIOConfig struct {
	Endpoint  string // empty disables minio:// image URLs
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type ModelsConfig struct {
	Models map[string]ModelInfo `yaml:"models"`
}

type ModelInfo struct {
	Dim         int    `yaml:"dim"`
	Description string `yaml:"description"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in [0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// splitList splits a comma-separated env value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	backend := strings.ToLower(envString("DATABASE_BACKEND", BackendPostgres))

	return &Config{
		Database: DatabaseConfig{
			Backend:      backend,
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Matching: MatchingConfig{
			ModelName:      envString("MODEL_NAME", "face_recognition"),
			Threshold:      envFloat("MATCH_THRESHOLD", 0.6),
			HNSWMinSize:    envInt("HNSW_MIN_SIZE", 0),
			HNSWCandidates: envInt("HNSW_CANDIDATES", 32),
		},
		Encoder: EncoderConfig{
			URL:                 envString("ENCODER_URL", "http://localhost:8000"),
			FetchTimeoutSeconds: envInt("IMAGE_FETCH_TIMEOUT_SECONDS", 10),
			MaxImageSize:        envInt("MAX_IMAGE_SIZE", 1024),
		},
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
		},
		Models: models,
	}
}

// ModelDim returns the registered dimensionality of a model, 0 when the model is not registered.
func (c *Config) ModelDim(modelName string) int {
	if info, ok := c.Models.Models[modelName]; ok {
		return info.Dim
	}
	return 0
}

// ModelDims returns the model registry as a name to dimension map.
func (c *Config) ModelDims() map[string]int {
	dims := make(map[string]int, len(c.Models.Models))
	for name, info := range c.Models.Models {
		dims[name] = info.Dim
	}
	return dims
}
