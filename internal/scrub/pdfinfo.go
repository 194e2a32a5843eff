package scrub

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// epochDate は作成日時・更新日時の代わりに書き込む固定値です。
const epochDate = "D:19700101000000Z"

var clearedInfoKeys = []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer"}

var disablePDFConfigDir sync.Once

// PDFStrategy は文書情報辞書の標準項目を空にします。ページ内容には触れません。
type PDFStrategy struct{}

// NewPDFStrategy は PDF 用のストラテジーを作成します。
func NewPDFStrategy() *PDFStrategy {
	// pdfcpu が設定ディレクトリをディスクに作らないようにする
	disablePDFConfigDir.Do(api.DisableConfigDir)
	return &PDFStrategy{}
}

// Sanitize は PDF を解析し、情報辞書を消去して書き出します。
func (s *PDFStrategy) Sanitize(_ context.Context, f QueuedFile) (_ *CleanedBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(KindCorruptInput, "PDFの解析中にエラーが発生しました。", fmt.Errorf("pdfcpu: %v", r))
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(f.Bytes()), conf)
	if err != nil {
		return nil, newError(KindCorruptInput, "PDFを解析できませんでした。", err)
	}

	info, err := clearInfoDict(ctx)
	if err != nil {
		return nil, newError(KindCorruptInput, "PDFの文書情報を読み取れませんでした。", err)
	}
	// WriteContext は同じ辞書に Producer と日時を書き込むので、書き出し前に文字列化しておく
	infoString := info.PDFString()

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, newError(KindCorruptInput, "PDFの書き出しに失敗しました。", err)
	}

	// 書き出された情報辞書オブジェクトを消去済みの内容に差し替える
	out, err := replaceInfoObject(buf.Bytes(), infoString)
	if err != nil {
		return nil, newError(KindCorruptInput, "PDFの文書情報を書き換えられませんでした。", err)
	}

	return &CleanedBuffer{Bytes: out, Type: MimePDF}, nil
}

// clearInfoDict は情報辞書の標準項目を空にし、日時を固定値にします。辞書が無ければ作成します。
func clearInfoDict(ctx *model.Context) (types.Dict, error) {
	var d types.Dict
	if ctx.Info != nil {
		var err error
		d, err = ctx.DereferenceDict(*ctx.Info)
		if err != nil {
			return nil, err
		}
	}
	if d == nil {
		d = types.NewDict()
		ir, err := ctx.IndRefForNewObject(d)
		if err != nil {
			return nil, err
		}
		ctx.Info = ir
	}

	for _, key := range clearedInfoKeys {
		d.Update(key, types.StringLiteral(""))
	}
	d.Update("CreationDate", types.StringLiteral(epochDate))
	d.Update("ModDate", types.StringLiteral(epochDate))
	return d, nil
}
