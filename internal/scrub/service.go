// Package scrub はアップロードされたファイルから埋め込みメタデータを取り除きます。
//
// 処理の流れ:
// 1. Policy.Accept で件数・形式・拡張子・サイズを検証
// 2. Dispatch で MIME タイプからストラテジーを選択
// 3. Runner が各ストラテジー（画像再エンコード、PDF情報辞書消去、docx部品除去、動画再多重化）を実行
// 4. Package で1ファイルまたはZIPの成果物にまとめる
//
// ファイルの内容はメモリ上だけで扱い、動画エンジン用の一時領域を除いてディスクには書きません。
package scrub

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/meta-scrub/internal/config"
	"github.com/yourusername/meta-scrub/internal/storage"
)

// Service は検証から成果物作成までをまとめて提供します。
type Service struct {
	policy Policy
	runner *Runner
	logger *log.Logger
}

// Result は1回のリクエストの処理結果です。
type Result struct {
	Report     *Report
	Rejections []Rejection
	Artifact   *Artifact
}

// NewService は設定からサービスを作成します。
func NewService(cfg *config.Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	policy := Policy{
		MaxFileCount: cfg.MaxFileCount,
		MaxFileSize:  cfg.MaxFileSize,
		EnableVideo:  cfg.EnableVideo,
	}

	var remux *RemuxStrategy
	if cfg.EnableVideo {
		engine := NewFFmpegEngine(cfg.FFmpegPath, storage.NewScratch(cfg.ScratchDir), logger)
		remux = NewRemuxStrategy(engine, time.Duration(cfg.RemuxTimeoutSeconds)*time.Second)
	}

	runner := NewRunner(RunnerOptions{
		Raster:   NewRasterStrategy(cfg.JPEGQuality, cfg.MaxPixels),
		PDF:      NewPDFStrategy(),
		Document: NewDocumentStrategy(),
		Remux:    remux,
		Workers:  cfg.Workers,
		Logger:   logger,
	})

	return &Service{policy: policy, runner: runner, logger: logger}
}

// Policy は受付条件を返します。
func (s *Service) Policy() Policy {
	return s.policy
}

// Scrub はファイルを検証・処理し、成果物を作成します。
// 受け付けたファイルが1件も無い場合は Report と Artifact が nil の Result を返します。
func (s *Service) Scrub(ctx context.Context, files []RawFile, progress ProgressReporter) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	batch, rejected := s.policy.Accept(files)
	for _, r := range rejected {
		s.logger.Printf("scrub: file=%q result=rejected kind=%s", r.Name, r.Kind)
	}
	if batch.Len() == 0 {
		return &Result{Rejections: rejected}, nil
	}

	report := s.runner.Run(ctx, batch, s.loggingProgress(batch.Len(), progress))

	artifact, err := Package(report)
	if err != nil {
		return nil, fmt.Errorf("成果物の作成に失敗しました: %w", err)
	}

	s.logger.Printf("scrub: batch done cleaned=%d skipped=%d failed=%d rejected=%d",
		report.Cleaned, report.Skipped, report.Failed, len(rejected))

	return &Result{Report: report, Rejections: rejected, Artifact: artifact}, nil
}

// loggingProgress は進捗をログに残してから呼び出し元のコールバックへ渡します。
func (s *Service) loggingProgress(files int, next ProgressReporter) ProgressReporter {
	return func(stage string, percent int) {
		s.logger.Printf("scrub: progress files=%d stage=%s percent=%d", files, stage, percent)
		reportProgress(next, stage, percent)
	}
}
