package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "MAX_REQUESTS_PER_HOUR", "JOB_RETENTION", "UNVOCAL_POLL_INTERVAL", "YOUTUBE_DL_FFMPEG_PATH"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.MaxRequestsPerHour)
	assert.Equal(t, time.Hour, cfg.Server.Retention)
	assert.Equal(t, time.Second, cfg.Client.PollInterval)
	assert.Zero(t, cfg.Client.PollTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.WorkDirTTL)
	assert.Equal(t, "ffmpeg", cfg.Pipeline.FFmpegBin())
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("UNVOCAL_SERVER_URL=http://example.test:9000\n"), 0644))

	t.Setenv("UNVOCAL_SERVER_URL", "")
	os.Unsetenv("UNVOCAL_SERVER_URL")
	t.Setenv("MAX_REQUESTS_PER_HOUR", "10")
	t.Setenv("UNVOCAL_POLL_INTERVAL", "250ms")
	t.Setenv("JOB_RETENTION", "120")
	t.Setenv("YOUTUBE_DL_FFMPEG_PATH", "/opt/ffmpeg/bin")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "http://example.test:9000", cfg.Client.ServerURL)
	assert.Equal(t, 10, cfg.Server.MaxRequestsPerHour)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Server.Retention)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Pipeline.FFmpegBin())
}

func TestValidatePipeline(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{}

	err := cfg.ValidatePipeline()
	assert.EqualError(t, err, "VOCAL_REMOVER_PATH environment variable not set")

	cfg.Pipeline.VocalRemoverPath = dir
	cfg.Pipeline.TempDir = filepath.Join(dir, "nope")
	err = cfg.ValidatePipeline()
	assert.ErrorContains(t, err, "TEMP_DIR")
	assert.ErrorContains(t, err, "does not exist")

	cfg.Pipeline.TempDir = dir
	cfg.Pipeline.FFmpegDir = dir
	assert.NoError(t, cfg.ValidatePipeline())
}
