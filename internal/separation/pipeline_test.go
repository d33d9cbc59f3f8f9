package separation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unvocal/internal/config"
	"unvocal/internal/models"
	"unvocal/internal/youtube"
)

type fakeSource struct {
	videoID     string
	title       string
	ext         string
	getErr      error
	downloadErr error
	downloads   int
}

func (s *fakeSource) GetVideo(ctx context.Context, url string) (*youtube.VideoInfo, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &youtube.VideoInfo{ID: s.videoID, Title: s.title}, nil
}

func (s *fakeSource) DownloadAudio(ctx context.Context, videoURL string, opts *youtube.DownloadAudioOptions, progress youtube.ProgressFunc) (string, error) {
	s.downloads++
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	path := filepath.Join(opts.OutputDir, s.title+s.ext)
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return "", err
	}
	progress(1, 2)
	progress(2, 2)
	return path, nil
}

// fakeRemover mimics inference.py: prints progress and writes <name>_Instruments.wav.
const fakeRemover = `#!/bin/sh
echo "loading model"
echo "separating 50%"
base=$(basename "$3" .wav)
cp "$3" "$5/${base}_Instruments.wav"
`

const failingRemover = `#!/bin/sh
echo "CUDA out of memory"
exit 1
`

// fakeFFmpeg copies the input (-i $2) to the last argument.
const fakeFFmpeg = `#!/bin/sh
for last; do :; done
cp "$2" "$last"
`

type progressLog struct {
	mu    sync.Mutex
	items []string
}

func (l *progressLog) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, msg)
}

type pipelineFixture struct {
	pipeline  *Pipeline
	source    *fakeSource
	staticDir string
	tempDir   string
	cleanups  []time.Duration
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
}

func newFixture(t *testing.T, remover, ext string) *pipelineFixture {
	t.Helper()
	root := t.TempDir()
	removerDir := filepath.Join(root, "remover")
	ffmpegDir := filepath.Join(root, "ffmpeg-bin")
	require.NoError(t, os.MkdirAll(removerDir, 0755))
	require.NoError(t, os.MkdirAll(ffmpegDir, 0755))

	python := filepath.Join(root, "python")
	writeScript(t, python, remover)
	writeScript(t, filepath.Join(ffmpegDir, "ffmpeg"), fakeFFmpeg)

	f := &pipelineFixture{
		source:    &fakeSource{videoID: "vid123", title: "My Song", ext: ext},
		staticDir: filepath.Join(root, "static"),
		tempDir:   filepath.Join(root, "tmp"),
	}
	cfg := config.PipelineConfig{
		VocalRemoverPath: removerDir,
		PythonBin:        python,
		TempDir:          f.tempDir,
		FFmpegDir:        ffmpegDir,
		WorkDirTTL:       30 * time.Minute,
	}
	f.pipeline = New(cfg, f.staticDir, f.source, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.pipeline.afterFunc = func(d time.Duration, fn func()) { f.cleanups = append(f.cleanups, d) }
	return f
}

func TestProcess_ConvertsAndPublishes(t *testing.T) {
	f := newFixture(t, fakeRemover, ".m4a")
	log := &progressLog{}
	var resolved string

	job := &models.VocalJob{ID: "req-1", YouTubeURL: "https://youtu.be/vid123"}
	result, err := f.pipeline.Process(context.Background(), job, Hooks{
		Progress: log.add,
		Resolved: func(id string) { resolved = id },
	})
	require.NoError(t, err)

	assert.Equal(t, "vid123", resolved)
	assert.Equal(t, "vid123", result.VideoID)
	assert.Equal(t, "My Song Instruments.wav", result.Filename)
	assert.Equal(t, "/static/by_request_id/req-1/My%20Song%20Instruments.wav", result.OutputPath)

	published := filepath.Join(f.staticDir, "by_request_id", "req-1", "My Song Instruments.wav")
	data, err := os.ReadFile(published)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))

	assert.Contains(t, log.items, StepResolve)
	assert.Contains(t, log.items, "downloading the youtube video: 50%")
	assert.Contains(t, log.items, "downloading the youtube video: 100%")
	assert.Contains(t, log.items, StepConvert+" has completed")
	assert.Contains(t, log.items, "running the vocal removal process: separating 50%")
	assert.Contains(t, log.items, StepSeparate+" has completed")
	assert.Equal(t, []time.Duration{30 * time.Minute}, f.cleanups)
}

func TestProcess_ReusesExistingWork(t *testing.T) {
	f := newFixture(t, fakeRemover, ".wav")
	ctx := context.Background()

	_, err := f.pipeline.Process(ctx, &models.VocalJob{ID: "a", YouTubeURL: "u"}, Hooks{})
	require.NoError(t, err)
	result, err := f.pipeline.Process(ctx, &models.VocalJob{ID: "b", YouTubeURL: "u"}, Hooks{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.source.downloads)
	assert.Equal(t, "/static/by_request_id/b/My%20Song%20Instruments.wav", result.OutputPath)
}

func TestProcess_Failures(t *testing.T) {
	ctx := context.Background()
	job := &models.VocalJob{ID: "r", YouTubeURL: "u"}

	t.Run("resolve", func(t *testing.T) {
		f := newFixture(t, fakeRemover, ".wav")
		f.source.getErr = errors.New("video unavailable")
		_, err := f.pipeline.Process(ctx, job, Hooks{})
		assert.EqualError(t, err, "Error when getting YouTube video ID. video unavailable")
	})

	t.Run("download", func(t *testing.T) {
		f := newFixture(t, fakeRemover, ".wav")
		f.source.downloadErr = errors.New("403 Forbidden")
		_, err := f.pipeline.Process(ctx, job, Hooks{})
		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, StepDownload, stepErr.Step)
	})

	t.Run("multiple downloads", func(t *testing.T) {
		f := newFixture(t, fakeRemover, ".m4a")
		dir := filepath.Join(f.tempDir, "vid123", "youtube")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.webm"), []byte("x"), 0644))
		_, err := f.pipeline.Process(ctx, job, Hooks{})
		assert.ErrorContains(t, err, "Multiple files found after youtube download")
	})

	t.Run("separation", func(t *testing.T) {
		f := newFixture(t, failingRemover, ".wav")
		log := &progressLog{}
		_, err := f.pipeline.Process(ctx, job, Hooks{Progress: log.add})
		assert.EqualError(t, err, "Error when running the vocal removal process. CUDA out of memory")
		assert.Contains(t, log.items, "running the vocal removal process: CUDA out of memory")
		assert.Empty(t, f.cleanups)
	})
}

func TestInstrumentsFilename(t *testing.T) {
	assert.Equal(t, "Song Instruments.wav", instrumentsFilename("/x/Song_Instruments.wav"))
	assert.Equal(t, "/static/by_request_id/r/a%3Fb%20Instruments.wav", StaticURL("r", "a?b Instruments.wav"))
}
