package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SupportedFormats lists audio formats that can be converted
var SupportedFormats = []string{".mp3", ".m4a", ".aac", ".ogg", ".flac", ".wav", ".webm", ".opus"}

// IsSupportedFormat checks if the file extension is a supported audio format
func IsSupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// IsWav reports whether the file already has a WAV extension.
func IsWav(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".wav")
}

// WavName returns the WAV file name for inputPath inside dir.
func WavName(dir, inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, base+".wav")
}

// ConvertToWav converts an audio file to 16kHz mono PCM WAV using the given ffmpeg binary.
func ConvertToWav(ctx context.Context, ffmpegBin, inputPath, outputPath string) error {
	if _, err := exec.LookPath(ffmpegBin); err != nil {
		return fmt.Errorf("ffmpeg not found: %s", ffmpegBin)
	}

	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// -ar 16000: sample rate 16kHz
	// -ac 1: mono channel
	// -c pcm_s16le: 16-bit PCM
	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c", "pcm_s16le",
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w\nOutput: %s", err, string(output))
	}

	return nil
}
