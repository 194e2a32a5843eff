package scrub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
)

const mainDocumentPart = "word/document.xml"

// propertyParts は作成者・会社名・編集時間などを保持するパッケージ部品です。
var propertyParts = map[string]bool{
	"docProps/core.xml":   true,
	"docProps/app.xml":    true,
	"docProps/custom.xml": true,
}

// DocumentStrategy は docx のプロパティ部品だけを取り除き、残りの部品はそのまま書き戻します。
type DocumentStrategy struct{}

// NewDocumentStrategy は docx 用のストラテジーを作成します。
func NewDocumentStrategy() *DocumentStrategy {
	return &DocumentStrategy{}
}

// Sanitize は docx を再構成します。同じ出力をもう一度通してもバイト単位で同一になります。
func (s *DocumentStrategy) Sanitize(_ context.Context, f QueuedFile) (*CleanedBuffer, error) {
	src := f.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, newError(KindCorruptInput, "docx をZIPとして読み込めませんでした。", err)
	}

	if !hasPart(zr, mainDocumentPart) {
		return nil, newError(KindInvalidContainer,
			fmt.Sprintf("%s が見つかりません。Word文書ではない可能性があります。", mainDocumentPart), nil)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range zr.File {
		if propertyParts[entry.Name] {
			continue
		}
		if err := copyEntry(zw, entry); err != nil {
			_ = zw.Close()
			return nil, newError(KindCorruptInput, fmt.Sprintf("%s の複写に失敗しました。", entry.Name), err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, newError(KindCorruptInput, "docx の書き出しに失敗しました。", err)
	}

	return &CleanedBuffer{Bytes: buf.Bytes(), Type: MimeDOCX}, nil
}

// copyEntry は圧縮済みデータをそのまま複写し、ヘッダーからは日時・コメント・拡張フィールドを落とします。
func copyEntry(zw *zip.Writer, entry *zip.File) error {
	h := entry.FileHeader
	h.Comment = ""
	h.Extra = nil
	h.Modified = time.Time{}
	h.ModifiedTime = 0
	h.ModifiedDate = 0

	src, err := entry.OpenRaw()
	if err != nil {
		return err
	}
	dst, err := zw.CreateRaw(&h)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func hasPart(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}
