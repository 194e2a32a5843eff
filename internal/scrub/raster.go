package scrub

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/webp"
)

const defaultJPEGQuality = 92

type rasterCodec struct {
	decodeConfig func(io.Reader) (image.Config, error)
	decode       func(io.Reader) (image.Image, error)
	encode       func(io.Writer, image.Image) error
}

// RasterStrategy は画像をピクセルだけから再エンコードし、EXIF/XMP/ICC などの付随情報を落とします。
type RasterStrategy struct {
	codecs    map[string]rasterCodec
	maxPixels int64
}

// NewRasterStrategy は JPEG/PNG/WEBP 用のストラテジーを作成します。
func NewRasterStrategy(jpegQuality int, maxPixels int64) *RasterStrategy {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = defaultJPEGQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &RasterStrategy{
		codecs: map[string]rasterCodec{
			MimeJPEG: {
				decodeConfig: jpeg.DecodeConfig,
				// 表示上の向きを保つため EXIF の Orientation を適用してから描き直す
				decode: func(r io.Reader) (image.Image, error) {
					return imaging.Decode(r, imaging.AutoOrientation(true))
				},
				encode: func(w io.Writer, img image.Image) error {
					return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
				},
			},
			MimePNG: {
				decodeConfig: png.DecodeConfig,
				decode:       png.Decode,
				encode: func(w io.Writer, img image.Image) error {
					enc := png.Encoder{CompressionLevel: png.DefaultCompression}
					return enc.Encode(w, img)
				},
			},
			MimeWEBP: {
				decodeConfig: webp.DecodeConfig,
				decode:       decodeWebP,
				encode: func(w io.Writer, img image.Image) error {
					// VP8X を付けないので EXIF/ICC/XMP チャンクは出力されない
					return nativewebp.Encode(w, img, nil)
				},
			},
		},
		maxPixels: maxPixels,
	}
}

// Sanitize は画像を復号して同じ形式で書き直します。出力の幅と高さは表示上の入力と一致します。
func (s *RasterStrategy) Sanitize(_ context.Context, f QueuedFile) (*CleanedBuffer, error) {
	codec, ok := s.codecs[f.DeclaredType()]
	if !ok {
		return nil, newError(KindUnsupportedFormat, "", nil)
	}

	src := f.Bytes()
	if detected := mimetype.Detect(src); !detected.Is(f.DeclaredType()) {
		return nil, newError(KindCorruptInput,
			fmt.Sprintf("ファイルの内容 (%s) が宣言された形式 (%s) と一致しません。", detected.String(), f.DeclaredType()), nil)
	}

	cfg, err := codec.decodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, newError(KindCorruptInput, "画像ヘッダーを読み取れませんでした。", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		return nil, newError(KindFileTooLarge,
			fmt.Sprintf("画像の画素数が上限を超えています (%dx%d)。", cfg.Width, cfg.Height), nil)
	}

	img, err := codec.decode(bytes.NewReader(src))
	if err != nil {
		return nil, newError(KindCorruptInput, "画像を復号できませんでした。", err)
	}

	if codec.encode == nil {
		return nil, newError(KindEncodeUnsupported, "", nil)
	}
	var buf bytes.Buffer
	if err := codec.encode(&buf, img); err != nil {
		return nil, newError(KindEncodeUnsupported, "画像の再エンコードに失敗しました。", err)
	}

	return &CleanedBuffer{Bytes: buf.Bytes(), Type: f.DeclaredType()}, nil
}

// decodeWebP は x/image の復号器で失敗した VP8L（VP8X のアルファフラグ付き）を救済します。
func decodeWebP(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if fallback, ferr := nativewebp.DecodeIgnoreAlphaFlag(bytes.NewReader(data)); ferr == nil {
		return fallback, nil
	}
	return nil, err
}
