package scrub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/meta-scrub/internal/storage"
)

const engineProbeTimeout = 15 * time.Second

// FFmpegEngine は ffmpeg を使った Engine 実装です。
// 実行ファイルの探索と動作確認は最初の利用時に一度だけ行い、結果はプロセス終了まで保持します。
type FFmpegEngine struct {
	path    string
	scratch *storage.Scratch
	logger  *log.Logger

	once    sync.Once
	binary  string
	loadErr error
}

// NewFFmpegEngine は ffmpeg エンジンを作成します。この時点ではプロセスを起動しません。
func NewFFmpegEngine(path string, scratch *storage.Scratch, logger *log.Logger) *FFmpegEngine {
	if path == "" {
		path = "ffmpeg"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FFmpegEngine{path: path, scratch: scratch, logger: logger}
}

func (e *FFmpegEngine) load() error {
	e.once.Do(func() {
		bin, err := exec.LookPath(e.path)
		if err != nil {
			e.loadErr = fmt.Errorf("ffmpeg が見つかりません: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), engineProbeTimeout)
		defer cancel()

		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, bin, "-hide_banner", "-version")
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			e.loadErr = fmt.Errorf("ffmpeg の起動確認に失敗しました: %w", err)
			return
		}

		e.binary = bin
		e.logger.Printf("remux engine ready: %s (%s)", bin, firstLine(out.String()))
	})
	return e.loadErr
}

// Remux は作業領域に入力を書き出し、ffmpeg でメタデータを除いたコピーを作ります。
func (e *FFmpegEngine) Remux(ctx context.Context, input []byte, ext string) ([]byte, error) {
	if err := e.load(); err != nil {
		return nil, newError(KindEngineUnavailable, "", err)
	}

	ws, err := e.scratch.Create()
	if err != nil {
		return nil, newError(KindEngineUnavailable, "動画処理用の作業領域を用意できませんでした。", err)
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			e.logger.Printf("failed to remove remux workspace %s: %v", ws.ID, err)
		}
	}()

	inputPath, err := ws.WriteFile("input"+ext, input)
	if err != nil {
		return nil, newError(KindEngineUnavailable, "動画処理用の作業領域に書き込めませんでした。", err)
	}
	outputPath := ws.Path("output" + ext)

	cmd := exec.CommandContext(ctx, e.binary, remuxArgs(inputPath, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newError(KindEngineUnavailable, "動画処理が時間内に終わりませんでした。", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, newError(KindCorruptInput,
				fmt.Sprintf("動画を読み取れませんでした: %s", lastLine(stderr.String())), err)
		}
		return nil, newError(KindEngineUnavailable, "", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, newError(KindCorruptInput, "動画の書き出し結果を読み込めませんでした。", err)
	}
	return data, nil
}

// remuxArgs は全ストリームをコピーし、グローバルタグ・チャプター・エンコーダー名を落とす引数を返します。
func remuxArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-map", "0",
		"-c", "copy",
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-metadata", "encoder=",
		"-fflags", "+bitexact",
		"-flags:v", "+bitexact",
		"-flags:a", "+bitexact",
		outputPath,
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
