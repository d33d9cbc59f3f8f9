package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for the server, the separation pipeline and the client.
type Config struct {
	Server   ServerConfig
	Pipeline PipelineConfig
	Client   ClientConfig
}

// ServerConfig configures the HTTP backend.
type ServerConfig struct {
	Port               string
	DatabasePath       string
	StaticDir          string
	MaxRequestsPerHour int
	Retention          time.Duration // jobs older than this are forgotten
	WorkerInterval     time.Duration
}

// PipelineConfig configures the external tools used by the worker.
type PipelineConfig struct {
	VocalRemoverPath string // checkout containing inference.py
	PythonBin        string
	TempDir          string
	FFmpegDir        string // directory containing the ffmpeg binary
	WorkDirTTL       time.Duration
}

// FFmpegBin returns the ffmpeg executable to run.
func (c PipelineConfig) FFmpegBin() string {
	if c.FFmpegDir == "" {
		return "ffmpeg"
	}
	return filepath.Join(c.FFmpegDir, "ffmpeg")
}

// ClientConfig configures the command line client.
type ClientConfig struct {
	ServerURL      string
	PollInterval   time.Duration
	PollTimeout    time.Duration // 0 polls until the job finishes
	RequestTimeout time.Duration
}

// Load reads the optional .env file and then the environment.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// .env がなくても環境変数だけで動作する
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			DatabasePath:       getEnv("DATABASE_PATH", "data/unvocal.db"),
			StaticDir:          getEnv("STATIC_DIR", "static"),
			MaxRequestsPerHour: getEnvAsInt("MAX_REQUESTS_PER_HOUR", 2),
			Retention:          getEnvAsDuration("JOB_RETENTION", time.Hour),
			WorkerInterval:     getEnvAsDuration("WORKER_INTERVAL", time.Second),
		},
		Pipeline: PipelineConfig{
			VocalRemoverPath: getEnv("VOCAL_REMOVER_PATH", ""),
			PythonBin:        getEnv("PYTHON_BIN", "python"),
			TempDir:          getEnv("TEMP_DIR", ""),
			FFmpegDir:        getEnv("YOUTUBE_DL_FFMPEG_PATH", ""),
			WorkDirTTL:       getEnvAsDuration("WORK_DIR_TTL", 30*time.Minute),
		},
		Client: ClientConfig{
			ServerURL:      getEnv("UNVOCAL_SERVER_URL", "http://127.0.0.1:8080"),
			PollInterval:   getEnvAsDuration("UNVOCAL_POLL_INTERVAL", time.Second),
			PollTimeout:    getEnvAsDuration("UNVOCAL_POLL_TIMEOUT", 0),
			RequestTimeout: getEnvAsDuration("UNVOCAL_REQUEST_TIMEOUT", 30*time.Second),
		},
	}

	return cfg, nil
}

// ValidatePipeline checks that the directories the pipeline depends on exist.
func (c *Config) ValidatePipeline() error {
	required := []struct {
		name  string
		value string
	}{
		{"VOCAL_REMOVER_PATH", c.Pipeline.VocalRemoverPath},
		{"TEMP_DIR", c.Pipeline.TempDir},
		{"YOUTUBE_DL_FFMPEG_PATH", c.Pipeline.FFmpegDir},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s environment variable not set", r.name)
		}
		if _, err := os.Stat(r.value); err != nil {
			return fmt.Errorf("%s %s does not exist", r.name, r.value)
		}
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返す
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or whole seconds ("3600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
