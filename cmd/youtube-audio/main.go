package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"unvocal/internal/youtube"
)

// Checks which audio track the pipeline would download for a video.
func main() {
	format := flag.String("format", "best", "audio format (best/mp4/webm)")
	lang := flag.String("lang", "", "audio track language")
	out := flag.String("out", "", "download into this directory")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("使い方: go run cmd/youtube-audio/main.go [-out dir] <YouTube URL>")
		fmt.Println("例: go run cmd/youtube-audio/main.go https://www.youtube.com/watch?v=dQw4w9WgXcQ")
		os.Exit(1)
	}
	videoURL := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := youtube.NewClient()

	fmt.Printf("動画を取得中: %s\n\n", videoURL)

	video, err := client.GetVideo(ctx, videoURL)
	if err != nil {
		log.Fatalf("動画の取得に失敗: %v\n", err)
	}

	fmt.Println("=== 動画情報 ===")
	fmt.Printf("タイトル: %s\n", video.Title)
	fmt.Printf("作成者: %s\n", video.Author)
	fmt.Printf("再生時間: %s\n", video.Duration)
	fmt.Printf("動画ID: %s\n", video.ID)
	fmt.Println()

	formats, err := client.ListAudioFormats(ctx, videoURL)
	if err != nil {
		log.Fatalf("フォーマットの取得に失敗: %v\n", err)
	}

	fmt.Println("=== 音声フォーマット ===")
	if len(formats) == 0 {
		fmt.Println("音声フォーマットがありません")
	}
	for i, f := range formats {
		track := f.Language
		if track == "" {
			track = "-"
		}
		def := ""
		if f.IsDefault {
			def = " (default)"
		}
		fmt.Printf("%d. itag=%d %s %dkbps %.1fMB lang=%s%s\n",
			i+1, f.ItagNo, f.MimeType, f.Bitrate/1000, float64(f.ContentLength)/1024/1024, track, def)
	}

	if *out == "" {
		return
	}

	fmt.Println("\n=== ダウンロード ===")
	if err := os.MkdirAll(*out, 0755); err != nil {
		log.Fatal(err)
	}
	lastPct := int64(-1)
	path, err := client.DownloadAudio(ctx, videoURL, &youtube.DownloadAudioOptions{
		Format:    *format,
		Language:  *lang,
		OutputDir: *out,
	}, func(current, total int64) {
		if total <= 0 {
			return
		}
		if pct := current * 100 / total; pct/10 != lastPct/10 {
			lastPct = pct
			fmt.Printf("  %d%%\n", pct)
		}
	})
	if err != nil {
		log.Fatalf("ダウンロードに失敗: %v\n", err)
	}

	fmt.Printf("\n✅ 保存しました: %s\n", path)
}
