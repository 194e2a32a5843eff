package scrub

import (
	"sort"
	"strings"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWEBP = "image/webp"
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeMP4  = "video/mp4"
	MimeAVI  = "video/avi"
	MimeMKV  = "video/mkv"
	MimeWEBM = "video/webm"
	MimeZIP  = "application/zip"
)

const (
	DefaultMaxFileCount       = 10
	DefaultMaxFileSize  int64 = 100 * 1024 * 1024
	DefaultMaxPixels    int64 = 100_000_000
)

// acceptedExtensions は受け付ける MIME タイプと拡張子の対応表です。
var acceptedExtensions = map[string][]string{
	MimeJPEG: {".jpeg", ".jpg"},
	MimePNG:  {".png"},
	MimeWEBP: {".webp"},
	MimePDF:  {".pdf"},
	MimeDOCX: {".docx"},
	MimeMP4:  {".mp4"},
	MimeAVI:  {".avi"},
	MimeMKV:  {".mkv"},
	MimeWEBM: {".webm"},
}

func isVideoType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}

// Policy は受付条件です。起動時に決まり、リクエストごとには変わりません。
type Policy struct {
	MaxFileCount int
	MaxFileSize  int64
	EnableVideo  bool
}

// DefaultPolicy は既定の受付条件を返します。
func DefaultPolicy() Policy {
	return Policy{
		MaxFileCount: DefaultMaxFileCount,
		MaxFileSize:  DefaultMaxFileSize,
		EnableVideo:  true,
	}
}

// requestOverhead はマルチパートの境界やヘッダー用に本文上限へ上乗せする量です。
const requestOverhead = 1 << 20

// MaxRequestBytes は1リクエストの本文の上限です。
// マルチパートをすべてメモリ上で解析するため、ルーターの MaxMultipartMemory にも同じ値を使います。
func (p Policy) MaxRequestBytes() int64 {
	return p.MaxFileSize*int64(p.MaxFileCount) + requestOverhead
}

// Extensions は MIME タイプに対応する拡張子を返します。受け付けない場合は ok=false です。
func (p Policy) Extensions(mimeType string) ([]string, bool) {
	mimeType = normalizeMIME(mimeType)
	exts, ok := acceptedExtensions[mimeType]
	if !ok {
		return nil, false
	}
	if isVideoType(mimeType) && !p.EnableVideo {
		return nil, false
	}
	return exts, true
}

// AcceptedTypes は受け付ける MIME タイプを辞書順で返します。
func (p Policy) AcceptedTypes() []string {
	types := make([]string, 0, len(acceptedExtensions))
	for t := range acceptedExtensions {
		if _, ok := p.Extensions(t); ok {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

func isAcceptedOutputType(mimeType string) bool {
	_, ok := acceptedExtensions[mimeType]
	return ok
}

// normalizeMIME はパラメータを除去して小文字化します。
func normalizeMIME(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func hasAllowedExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
