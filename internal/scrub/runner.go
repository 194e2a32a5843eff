package scrub

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// Runner はバッチ内の各ファイルをストラテジーに振り分け、入力順の Report にまとめます。
type Runner struct {
	raster   *RasterStrategy
	pdf      *PDFStrategy
	document *DocumentStrategy
	remux    *RemuxStrategy // nil のとき動画は skipped になる
	workers  int
	logger   *log.Logger
}

// RunnerOptions は Runner の構成要素です。
type RunnerOptions struct {
	Raster   *RasterStrategy
	PDF      *PDFStrategy
	Document *DocumentStrategy
	Remux    *RemuxStrategy
	Workers  int
	Logger   *log.Logger
}

// NewRunner は Runner を作成します。
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Runner{
		raster:   opts.Raster,
		pdf:      opts.PDF,
		document: opts.Document,
		remux:    opts.Remux,
		workers:  opts.Workers,
		logger:   opts.Logger,
	}
}

// Run はバッチを処理します。1ファイルの失敗は他のファイルに影響しません。
// 画像・PDF・文書は並行に、動画は1件ずつ順番に処理します。
// 処理中のファイルは呼び出し元のキャンセル後も最後まで実行され、結果の破棄は呼び出し元に任されます。
func (r *Runner) Run(ctx context.Context, batch Batch, progress ProgressReporter) *Report {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	files := batch.Files()
	outcomes := make([]Outcome, len(files))
	counter := &progressCounter{cb: progress, total: len(files)}
	reportProgress(progress, "queued", 0)

	var videos []int
	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for i, f := range files {
		if Dispatch(f.DeclaredType()) == StrategyRemux {
			videos = append(videos, i)
			continue
		}
		g.Go(func() error {
			outcomes[i] = r.process(ctx, f)
			counter.fileDone()
			return nil
		})
	}

	videoDone := make(chan struct{})
	go func() {
		defer close(videoDone)
		for _, i := range videos {
			outcomes[i] = r.process(ctx, files[i])
			counter.fileDone()
		}
	}()

	_ = g.Wait()
	<-videoDone

	assignOutputNames(outcomes)
	mustVerifyOutcomes(files, outcomes)

	report := newReport(outcomes)
	reportProgress(progress, "completed", 100)
	return report
}

func (r *Runner) process(ctx context.Context, f QueuedFile) (outcome Outcome) {
	kind := Dispatch(f.DeclaredType())
	defer func() {
		if rec := recover(); rec != nil {
			err := newError(KindCorruptInput, "", fmt.Errorf("panic in %s strategy: %v", kind, rec))
			r.logger.Printf("scrub: file=%q strategy=%s result=failed: %v", f.Name(), kind, err)
			outcome = failedOutcome(f.Name(), err)
		}
	}()

	var (
		buf *CleanedBuffer
		err error
	)
	switch {
	case kind == StrategyRaster && r.raster != nil:
		buf, err = r.raster.Sanitize(ctx, f)
	case kind == StrategyPDF && r.pdf != nil:
		buf, err = r.pdf.Sanitize(ctx, f)
	case kind == StrategyDocument && r.document != nil:
		buf, err = r.document.Sanitize(ctx, f)
	case kind == StrategyRemux && r.remux != nil:
		buf, err = r.remux.Sanitize(ctx, f)
	default:
		r.logger.Printf("scrub: file=%q type=%s result=skipped", f.Name(), f.DeclaredType())
		return skippedOutcome(f.Name(), KindUnsupportedFormat)
	}

	if err != nil {
		r.logger.Printf("scrub: file=%q strategy=%s result=failed kind=%s: %v", f.Name(), kind, KindOf(err), err)
		return failedOutcome(f.Name(), err)
	}
	return cleanedOutcome(f.Name(), buf)
}

func assignOutputNames(outcomes []Outcome) {
	names := newNameAllocator()
	for i := range outcomes {
		if outcomes[i].Status == StatusCleaned {
			outcomes[i].OutputName = names.allocate(cleanedName(outcomes[i].Source))
		}
	}
}

// mustVerifyOutcomes は Report の不変条件を確認します。違反はプログラムの誤りなので panic します。
func mustVerifyOutcomes(files []QueuedFile, outcomes []Outcome) {
	if len(files) != len(outcomes) {
		panic(fmt.Sprintf("scrub: %d outcomes for %d files", len(outcomes), len(files)))
	}
	for i, o := range outcomes {
		if o.Status == "" || o.Source != files[i].Name() {
			panic(fmt.Sprintf("scrub: outcome %d does not belong to %q", i, files[i].Name()))
		}
		if o.Status == StatusCleaned && !isAcceptedOutputType(o.OutputType) {
			panic(fmt.Sprintf("scrub: cleaned output type %q is not accepted", o.OutputType))
		}
	}
}
