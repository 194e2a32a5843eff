package scrub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// ArchiveFilename は複数ファイルをまとめた ZIP の名前です。
const ArchiveFilename = "cleaned_files.zip"

// Package は Report から成果物を作ります。
// cleaned が1件ならそのファイル、2件以上なら ZIP、0件なら nil を返します。
func Package(report *Report) (*Artifact, error) {
	if report == nil {
		return nil, nil
	}
	cleaned := report.CleanedOutcomes()
	switch len(cleaned) {
	case 0:
		return nil, nil
	case 1:
		o := cleaned[0]
		return &Artifact{
			Bytes:    o.Bytes,
			Filename: o.OutputName,
			MimeType: o.OutputType,
			Kind:     ArtifactFile,
		}, nil
	}

	data, err := createZip(cleaned)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Bytes:    data,
		Filename: ArchiveFilename,
		MimeType: MimeZIP,
		Kind:     ArtifactZIP,
	}, nil
}

// createZip は cleaned の結果を入力順に格納します。更新日時は記録しません。
func createZip(outcomes []Outcome) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, o := range outcomes {
		header := &zip.FileHeader{
			Name:   o.OutputName,
			Method: entryMethod(o.OutputType),
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("ZIPエントリの作成に失敗しました (%s): %w", o.OutputName, err)
		}
		if _, err := w.Write(o.Bytes); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("ZIPへの書き込みに失敗しました (%s): %w", o.OutputName, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("ZIPの作成に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

// entryMethod は圧縮済みの画像・動画を無圧縮で格納します。
func entryMethod(mimeType string) uint16 {
	if strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/") {
		return zip.Store
	}
	return zip.Deflate
}
