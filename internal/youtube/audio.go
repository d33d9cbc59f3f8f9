package youtube

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
)

// AudioFormat は音声フォーマット情報
type AudioFormat struct {
	ItagNo        int
	MimeType      string // "audio/mp4", "audio/webm"
	Bitrate       int    // ビットレート (bps)
	ContentLength int64  // ファイルサイズ (bytes)
	Quality       string // 音質ラベル
	Language      string // 言語コード (例: "ja", "en")
	LanguageName  string // 言語表示名
	IsDefault     bool   // デフォルト音声トラックかどうか
}

// Extension はMIMEタイプから拡張子を返す
func (f *AudioFormat) Extension() string {
	if strings.Contains(f.MimeType, "mp4") {
		return ".m4a"
	}
	if strings.Contains(f.MimeType, "webm") {
		return ".webm"
	}
	return ".audio"
}

// DownloadAudioOptions はダウンロードオプション
type DownloadAudioOptions struct {
	Format    string // "mp4", "webm", "best" (default: "best")
	Language  string // 言語コード、空の場合はデフォルト
	OutputDir string // 出力先ディレクトリ、ファイル名は動画タイトルから作る
}

// ProgressFunc receives the number of bytes written so far and the expected total.
type ProgressFunc func(current, total int64)

// audioFormats は音声のみのフォーマットをビットレート降順で返す
func audioFormats(formats ytdl.FormatList) []AudioFormat {
	var out []AudioFormat
	for _, f := range formats {
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}

		af := AudioFormat{
			ItagNo:        f.ItagNo,
			MimeType:      f.MimeType,
			Bitrate:       f.Bitrate,
			ContentLength: f.ContentLength,
			Quality:       f.AudioQuality,
		}
		if f.AudioTrack != nil {
			af.LanguageName = f.AudioTrack.DisplayName
			af.Language = f.AudioTrack.ID
			af.IsDefault = f.AudioTrack.AudioIsDefault
		}
		out = append(out, af)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Bitrate > out[j].Bitrate
	})
	return out
}

// selectAudioFormat は指定された形式と言語に基づいて最適なフォーマットを選択
func selectAudioFormat(formats []AudioFormat, formatType, language string) (*AudioFormat, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("no audio formats available")
	}

	if language != "" {
		var langFiltered []AudioFormat
		for _, f := range formats {
			langMatch := strings.HasPrefix(strings.ToLower(f.Language), strings.ToLower(language))
			nameMatch := strings.Contains(strings.ToLower(f.LanguageName), strings.ToLower(language))
			if langMatch || nameMatch {
				langFiltered = append(langFiltered, f)
			}
		}
		// 見つからない場合はフィルタなしで続行
		if len(langFiltered) > 0 {
			formats = langFiltered
		}
	}

	var filtered []AudioFormat
	switch formatType {
	case "mp4", "webm":
		for _, f := range formats {
			if strings.Contains(f.MimeType, formatType) {
				filtered = append(filtered, f)
			}
		}
	default: // "best"
		filtered = formats
	}

	if len(filtered) == 0 {
		return nil, fmt.Errorf("no audio formats available for type: %s", formatType)
	}

	// 最高ビットレートを返す（既にソート済み）
	return &filtered[0], nil
}

// ListAudioFormats は動画の音声フォーマット一覧を返す
func (c *Client) ListAudioFormats(ctx context.Context, videoURL string) ([]AudioFormat, error) {
	video, err := c.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return audioFormats(video.Formats), nil
}

// DownloadAudio は音声をダウンロードし、保存先のパスを返す
func (c *Client) DownloadAudio(ctx context.Context, videoURL string, opts *DownloadAudioOptions, progress ProgressFunc) (string, error) {
	if opts == nil {
		opts = &DownloadAudioOptions{}
	}
	formatType := opts.Format
	if formatType == "" {
		formatType = "best"
	}

	video, err := c.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("failed to get video: %w", err)
	}

	selected, err := selectAudioFormat(audioFormats(video.Formats), formatType, opts.Language)
	if err != nil {
		return "", err
	}

	// 対応するフォーマットを見つける（ItagNo + 言語で一致）
	var target *ytdl.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.ItagNo != selected.ItagNo {
			continue
		}
		if selected.Language != "" && (f.AudioTrack == nil || f.AudioTrack.ID != selected.Language) {
			continue
		}
		target = f
		break
	}
	if target == nil {
		return "", fmt.Errorf("format not found: itag=%d lang=%s", selected.ItagNo, selected.Language)
	}

	stream, size, err := c.client.GetStreamContext(ctx, video, target)
	if err != nil {
		return "", fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	outputPath := filepath.Join(opts.OutputDir, sanitizeFilename(video.Title)+selected.Extension())
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := copyWithProgress(ctx, file, stream, size, progress); err != nil {
		os.Remove(outputPath) // 失敗時はファイルを削除
		return "", fmt.Errorf("failed to download: %w", err)
	}

	return outputPath, nil
}

// copyWithProgress はプログレスコールバック付きでコピー
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) error {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
				if progress != nil {
					progress(written, total)
				}
			}
			if ew != nil {
				return ew
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// sanitizeFilename はファイル名として使えない文字を置換
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = strings.TrimSpace(replacer.Replace(name))
	if name == "" {
		return "audio"
	}
	return name
}
