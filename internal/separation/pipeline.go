// Package separation turns a YouTube URL into an instrumental track by chaining
// the YouTube download, ffmpeg conversion and an external vocal-remover script.
package separation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"unvocal/internal/audio"
	"unvocal/internal/config"
	"unvocal/internal/models"
	"unvocal/internal/youtube"
)

// Step names shown to the user as progress and in failure messages.
const (
	StepResolve  = "getting YouTube video ID"
	StepDownload = "downloading the youtube video"
	StepConvert  = "converting to wav"
	StepSeparate = "running the vocal removal process"
)

const instrumentsSuffix = "_Instruments.wav"

// StepError is a failure of one pipeline step.
type StepError struct {
	Step   string
	Detail string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("Error when %s. %s", e.Step, e.Detail)
}

// Source fetches video metadata and audio.
type Source interface {
	GetVideo(ctx context.Context, url string) (*youtube.VideoInfo, error)
	DownloadAudio(ctx context.Context, videoURL string, opts *youtube.DownloadAudioOptions, progress youtube.ProgressFunc) (string, error)
}

// Hooks receive updates while a job is processed. Nil fields are ignored.
type Hooks struct {
	Progress func(progress string)
	Resolved func(videoID string)
}

func (h Hooks) progress(msg string) {
	if h.Progress != nil {
		h.Progress(msg)
	}
}

// Result describes the published instrumental track.
type Result struct {
	VideoID    string
	Filename   string
	OutputPath string // URL path under /static
}

// Pipeline runs the vocal removal steps for one job at a time.
type Pipeline struct {
	cfg       config.PipelineConfig
	staticDir string
	source    Source
	logger    *slog.Logger
	afterFunc func(d time.Duration, f func())
}

// New creates a Pipeline publishing results under staticDir.
func New(cfg config.PipelineConfig, staticDir string, source Source, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		staticDir: staticDir,
		source:    source,
		logger:    logger,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Process runs every step for job. Steps whose output already exists in the
// working directory of the video are skipped.
func (p *Pipeline) Process(ctx context.Context, job *models.VocalJob, hooks Hooks) (*Result, error) {
	hooks.progress(StepResolve)
	video, err := p.source.GetVideo(ctx, job.YouTubeURL)
	if err != nil {
		return nil, &StepError{Step: StepResolve, Detail: err.Error()}
	}
	if video.ID == "" {
		return nil, &StepError{Step: StepResolve, Detail: "empty video id"}
	}
	hooks.progress(StepResolve + " has completed")
	if hooks.Resolved != nil {
		hooks.Resolved(video.ID)
	}

	workDir, err := filepath.Abs(filepath.Join(p.cfg.TempDir, video.ID))
	if err != nil {
		return nil, err
	}
	youtubeDir := filepath.Join(workDir, "youtube")
	removerDir := filepath.Join(workDir, "vocal-remover")
	ffmpegDir := filepath.Join(workDir, "ffmpeg")
	for _, dir := range []string{youtubeDir, removerDir, ffmpegDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create working directory: %w", err)
		}
	}

	if existing := glob(youtubeDir, "*.wav"); len(existing) > 0 {
		p.logger.Info("audio already downloaded, skipping download", "dir", youtubeDir)
	} else if err := p.download(ctx, job.YouTubeURL, youtubeDir, hooks); err != nil {
		return nil, err
	}

	downloaded := glob(youtubeDir, "*.*")
	switch {
	case len(downloaded) == 0:
		return nil, fmt.Errorf("No audio file found after downloading the YouTube video")
	case len(downloaded) > 1:
		return nil, fmt.Errorf("Multiple files found after youtube download. Please ensure only one audio file is present. Files: %s",
			strings.Join(downloaded, ", "))
	}

	wavPath, err := p.ensureWav(ctx, downloaded[0], ffmpegDir, hooks)
	if err != nil {
		return nil, err
	}

	if existing := glob(removerDir, "*"+instrumentsSuffix); len(existing) > 0 {
		p.logger.Info("instrumental track already exists, skipping separation", "dir", removerDir)
	} else {
		script := filepath.Join(p.cfg.VocalRemoverPath, "inference.py")
		if _, err := runCommand(ctx, StepSeparate, p.cfg.VocalRemoverPath, hooks,
			p.cfg.PythonBin, script, "--input", wavPath, "--output_dir", removerDir, "--tta"); err != nil {
			return nil, err
		}
	}

	instruments := glob(removerDir, "*"+instrumentsSuffix)
	if len(instruments) == 0 {
		return nil, &StepError{Step: StepSeparate, Detail: "no instrumental track was produced"}
	}

	result, err := p.publish(job.ID, instruments[0])
	if err != nil {
		return nil, err
	}
	result.VideoID = video.ID

	// 同じ動画への再リクエストに備えてしばらく残す
	p.afterFunc(p.cfg.WorkDirTTL, func() {
		if err := os.RemoveAll(workDir); err != nil {
			p.logger.Warn("failed to remove working directory", "dir", workDir, "error", err)
		}
	})

	return result, nil
}

func (p *Pipeline) download(ctx context.Context, videoURL, dir string, hooks Hooks) error {
	hooks.progress(StepDownload)
	lastPct := int64(-1)
	_, err := p.source.DownloadAudio(ctx, videoURL, &youtube.DownloadAudioOptions{OutputDir: dir}, func(current, total int64) {
		if total <= 0 {
			return
		}
		pct := current * 100 / total
		if pct != lastPct {
			lastPct = pct
			hooks.progress(fmt.Sprintf("%s: %d%%", StepDownload, pct))
		}
	})
	if err != nil {
		return &StepError{Step: StepDownload, Detail: err.Error()}
	}
	hooks.progress(StepDownload + " has completed")
	return nil
}

func (p *Pipeline) ensureWav(ctx context.Context, input, ffmpegDir string, hooks Hooks) (string, error) {
	if audio.IsWav(input) {
		p.logger.Info("input is already WAV, using it directly", "file", input)
		return input, nil
	}
	if !audio.IsSupportedFormat(input) {
		return "", fmt.Errorf("Unsupported audio format: %s", filepath.Base(input))
	}
	if converted := glob(ffmpegDir, "*.wav"); len(converted) > 0 {
		p.logger.Info("converted WAV already exists, skipping conversion", "file", converted[0])
		return converted[0], nil
	}

	hooks.progress(StepConvert)
	if err := audio.ConvertToWav(ctx, p.cfg.FFmpegBin(), input, audio.WavName(ffmpegDir, input)); err != nil {
		return "", &StepError{Step: StepConvert, Detail: err.Error()}
	}
	converted := glob(ffmpegDir, "*.wav")
	if len(converted) == 0 {
		return "", fmt.Errorf("Failed to convert audio file to WAV format")
	}
	hooks.progress(StepConvert + " has completed")
	return converted[0], nil
}

// publish copies the instrumental track into the static tree.
func (p *Pipeline) publish(requestID, instruments string) (*Result, error) {
	name := instrumentsFilename(instruments)
	dir := filepath.Join(p.staticDir, "by_request_id", requestID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := copyFile(instruments, filepath.Join(dir, name)); err != nil {
		return nil, fmt.Errorf("failed to publish result: %w", err)
	}
	return &Result{
		Filename:   name,
		OutputPath: StaticURL(requestID, name),
	}, nil
}

// StaticURL returns the escaped URL path of a published file.
func StaticURL(requestID, filename string) string {
	return "/static/by_request_id/" + url.PathEscape(requestID) + "/" + url.PathEscape(filename)
}

// instrumentsFilename turns "Song_Instruments.wav" into "Song Instruments.wav".
func instrumentsFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, instrumentsSuffix) + " Instruments.wav"
}

// runCommand runs an external tool, streaming each output line as progress.
// It returns the combined output.
func runCommand(ctx context.Context, step, dir string, hooks Hooks, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &StepError{Step: step, Detail: err.Error()}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return "", &StepError{Step: step, Detail: err.Error()}
	}

	var lines []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
		hooks.progress(step + ": " + line)
	}
	// drain so Wait does not block on a full pipe after a scan error
	_, _ = io.Copy(io.Discard, stdout)

	output := strings.Join(lines, "\n")
	if err := cmd.Wait(); err != nil {
		detail := output
		if detail == "" {
			detail = err.Error()
		}
		return output, &StepError{Step: step, Detail: detail}
	}

	hooks.progress(step + " has completed")
	return output, nil
}

func glob(dir, pattern string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, pattern))
	return matches
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
