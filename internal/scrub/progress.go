package scrub

import "sync"

// ProgressReporter は進捗更新用コールバックです。
type ProgressReporter func(stage string, percent int)

func reportProgress(cb ProgressReporter, stage string, percent int) {
	if cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	cb(stage, percent)
}

// progressCounter は並行して完了するファイル数を数え、コールバックを直列に呼び出します。
type progressCounter struct {
	mu    sync.Mutex
	cb    ProgressReporter
	total int
	done  int
}

func (p *progressCounter) fileDone() {
	if p.cb == nil || p.total == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	reportProgress(p.cb, "process", p.done*100/p.total)
}
