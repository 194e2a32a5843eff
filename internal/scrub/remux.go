package scrub

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// Engine はストリームを再エンコードせずにコンテナを書き直すエンジンです。
type Engine interface {
	Remux(ctx context.Context, input []byte, ext string) ([]byte, error)
}

var remuxExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// RemuxStrategy は動画のグローバルタグとチャプターを除去します。
// エンジンは1つだけ共有され、同時に実行される再多重化は常に1件以下です。
type RemuxStrategy struct {
	engine  Engine
	slot    *semaphore.Weighted
	timeout time.Duration
}

// NewRemuxStrategy は動画用のストラテジーを作成します。timeout が 0 以下なら打ち切りません。
func NewRemuxStrategy(engine Engine, timeout time.Duration) *RemuxStrategy {
	return &RemuxStrategy{
		engine:  engine,
		slot:    semaphore.NewWeighted(1),
		timeout: timeout,
	}
}

// Sanitize は動画を再多重化します。出力の MIME タイプは入力と同じです。
func (s *RemuxStrategy) Sanitize(ctx context.Context, f QueuedFile) (*CleanedBuffer, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	if !remuxExtensions[ext] {
		return nil, newError(KindUnsupportedFormat, "対応していない動画コンテナです。", nil)
	}
	if s.engine == nil {
		return nil, newError(KindEngineUnavailable, "", nil)
	}

	if err := s.slot.Acquire(ctx, 1); err != nil {
		return nil, newError(KindEngineUnavailable, "動画処理の順番待ちが中断されました。", err)
	}
	defer s.slot.Release(1)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.engine.Remux(ctx, f.Bytes(), ext)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, newError(KindCorruptInput, "動画の書き出し結果が空です。", nil)
	}
	return &CleanedBuffer{Bytes: out, Type: f.DeclaredType()}, nil
}
