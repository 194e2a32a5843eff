package scrub

import "fmt"

// Validate は候補ファイルを受付条件と照合します。
// 件数、形式、拡張子、サイズの順に確認し、すべて通過した場合のみ内容を読み込みます。
func (p Policy) Validate(candidate RawFile, currentBatchSize int) (QueuedFile, error) {
	if currentBatchSize+1 > p.MaxFileCount {
		return QueuedFile{}, newError(KindTooManyFiles,
			fmt.Sprintf("一度に処理できるのは %d ファイルまでです。", p.MaxFileCount), nil)
	}

	declared := normalizeMIME(candidate.DeclaredType())
	exts, ok := p.Extensions(declared)
	if !ok {
		return QueuedFile{}, newError(KindUnsupportedFormat,
			fmt.Sprintf("対応していないファイル形式です (%s)。", candidate.DeclaredType()), nil)
	}
	if !hasAllowedExtension(candidate.Name(), exts) {
		return QueuedFile{}, newError(KindUnsupportedFormat,
			fmt.Sprintf("ファイル名の拡張子が形式 %s と一致しません。", declared), nil)
	}

	if candidate.Size() > p.MaxFileSize {
		return QueuedFile{}, newError(KindFileTooLarge, p.sizeMessage(), nil)
	}

	content, err := candidate.Content()
	if err != nil {
		return QueuedFile{}, newError(KindCorruptInput, "ファイルの読み込みに失敗しました。", err)
	}
	if int64(len(content)) > p.MaxFileSize {
		return QueuedFile{}, newError(KindFileTooLarge, p.sizeMessage(), nil)
	}

	return QueuedFile{
		name:         candidate.Name(),
		declaredType: declared,
		content:      content,
	}, nil
}

// Accept は候補を入力順に検証し、受け付けたファイルのバッチと拒否一覧を返します。
func (p Policy) Accept(candidates []RawFile) (Batch, []Rejection) {
	var (
		files    []QueuedFile
		rejected []Rejection
	)
	for _, c := range candidates {
		f, err := p.Validate(c, len(files))
		if err != nil {
			rejected = append(rejected, Rejection{
				Name:    c.Name(),
				Kind:    KindOf(err),
				Message: messageOf(err),
			})
			continue
		}
		files = append(files, f)
	}
	return Batch{files: files}, rejected
}

func (p Policy) sizeMessage() string {
	return fmt.Sprintf("ファイルサイズは %dMB 以下にしてください。", p.MaxFileSize/(1024*1024))
}
